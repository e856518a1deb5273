package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidOption is returned when an option write fails type or range checks.
	ErrInvalidOption = errors.New("invalid option")
	// ErrUnknownOption is returned for keys that do not name a scalar option.
	ErrUnknownOption = errors.New("unknown option")
)

var validate = validator.New()

// upperKeys are normalized to upper case before they are stored.
var upperKeys = map[string]bool{
	"trading.symbol":                             true,
	"trading.timeframe":                          true,
	"signal_requirements.strategy_mode_override": true,
	"signal_requirements.higher_timeframe":       true,
	"filters.asia_session_mode":                  true,
	"profit_target.action_when_reached":          true,
}

// DefaultOptions returns the options with every default applied.
func DefaultOptions() Options {
	var o Options
	if err := defaults.Set(&o); err != nil {
		// Tags are static; a failure here is a programming error.
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return o
}

// LoadOptions reads a YAML options file over the defaults. A missing file
// yields the defaults.
func LoadOptions(path string) (Options, error) {
	o := DefaultOptions()

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("path", path).Msg("settings file not found, using defaults")
	case err != nil:
		return Options{}, fmt.Errorf("read settings: %w", err)
	default:
		if err := yaml.Unmarshal(b, &o); err != nil {
			return Options{}, fmt.Errorf("parse settings: %w", err)
		}
	}

	normalize(&o)
	if err := Validate(o); err != nil {
		return Options{}, fmt.Errorf("validate settings: %w", err)
	}
	clampRisk(&o)
	return o, nil
}

// Validate checks every range and enum constraint.
func Validate(o Options) error {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalidOption, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

func normalize(o *Options) {
	o.Trading.Symbol = strings.ToUpper(o.Trading.Symbol)
	o.Trading.Timeframe = strings.ToUpper(o.Trading.Timeframe)
	o.Signals.ModeOverride = strings.ToUpper(o.Signals.ModeOverride)
	o.Signals.HigherTimeframe = strings.ToUpper(o.Signals.HigherTimeframe)
	o.Filters.AsiaSessionMode = strings.ToUpper(o.Filters.AsiaSessionMode)
	o.ProfitTarget.Action = strings.ToUpper(o.ProfitTarget.Action)
	for i, s := range o.Filters.AllowedSessions {
		o.Filters.AllowedSessions[i] = strings.ToLower(strings.TrimSpace(s))
	}
}

// clampRisk keeps the per-trade risk within the total risk budget.
func clampRisk(o *Options) {
	if o.Risk.RiskPerTradePct > o.Risk.MaxTotalRiskPct {
		o.Risk.RiskPerTradePct = o.Risk.MaxTotalRiskPct
	}
}

// Store holds the live options. Writers go through Set or ApplyPreset, which
// validate a candidate copy before swapping it in.
type Store struct {
	mu   sync.RWMutex
	opts Options
}

// NewStore creates a store holding o.
func NewStore(o Options) *Store {
	return &Store{opts: o.Clone()}
}

// Snapshot returns a copy of the current options.
func (s *Store) Snapshot() Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts.Clone()
}

// Set writes one scalar option addressed as "<section>.<key>" using the YAML
// names, e.g. "risk_management.risk_per_trade_pct". On any error the previous
// value stays in effect.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := s.opts.Clone()
	field, err := lookup(reflect.ValueOf(&candidate).Elem(), strings.Split(key, "."))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if upperKeys[key] {
		value = strings.ToUpper(value)
	}
	if err := assign(field, value); err != nil {
		return fmt.Errorf("set %s=%q: %w", key, value, err)
	}

	normalize(&candidate)
	if err := Validate(candidate); err != nil {
		return fmt.Errorf("set %s=%q: %w", key, value, err)
	}
	clampRisk(&candidate)

	old := fmt.Sprint(fieldValue(reflect.ValueOf(&s.opts).Elem(), strings.Split(key, ".")))
	s.opts = candidate
	log.Info().Str("component", "config").Str("key", key).Str("old", old).Str("new", value).Msg("option updated")
	return nil
}

// Get returns the string form of one scalar option.
func (s *Store) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := reflect.ValueOf(s.opts)
	f, err := lookup(v, strings.Split(key, "."))
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return fmt.Sprint(f.Interface()), nil
}

// Update applies fn to a candidate copy and keeps it only if it validates.
func (s *Store) Update(fn func(*Options)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate := s.opts.Clone()
	fn(&candidate)
	normalize(&candidate)
	if err := Validate(candidate); err != nil {
		return err
	}
	clampRisk(&candidate)
	s.opts = candidate
	return nil
}

func lookup(v reflect.Value, path []string) (reflect.Value, error) {
	for _, name := range path {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, ErrUnknownOption
		}
		next, ok := fieldByYAML(v, name)
		if !ok {
			return reflect.Value{}, ErrUnknownOption
		}
		v = next
	}
	switch v.Kind() {
	case reflect.Struct, reflect.Map:
		return reflect.Value{}, ErrUnknownOption
	}
	return v, nil
}

func fieldValue(v reflect.Value, path []string) any {
	f, err := lookup(v, path)
	if err != nil {
		return nil
	}
	return f.Interface()
}

func fieldByYAML(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func assign(f reflect.Value, value string) error {
	value = strings.TrimSpace(value)
	switch f.Kind() {
	case reflect.String:
		f.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: want a boolean", ErrInvalidOption)
		}
		f.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: want an integer", ErrInvalidOption)
		}
		f.SetInt(n)
	case reflect.Float64:
		x, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: want a number", ErrInvalidOption)
		}
		f.SetFloat(x)
	case reflect.Slice:
		if f.Type().Elem().Kind() != reflect.String {
			return ErrUnknownOption
		}
		parts := strings.Split(value, ",")
		out := reflect.MakeSlice(f.Type(), 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = reflect.Append(out, reflect.ValueOf(p))
			}
		}
		f.Set(out)
	default:
		return ErrUnknownOption
	}
	return nil
}
