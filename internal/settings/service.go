package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"gorm.io/gorm"

	"github.com/gomartvn/gomart-backend/pkg/db/models"
	"github.com/gomartvn/gomart-backend/pkg/enums"
	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
	"github.com/gomartvn/gomart-backend/pkg/logger"
)

// Well-known runtime setting keys. A missing row falls back to the static
// config default supplied by the caller.
const (
	KeyOrderAutoCompleteDays = "order_auto_complete_days"
	KeyLoyaltyEarnRate       = "loyalty_earn_rate"
	KeyLoyaltyRedeemActive   = "loyalty_redeem_active"
	KeyLowStockThreshold     = "low_stock_threshold"
	KeyLoginRateLimit        = "login_rate_limit"
	KeyPasswordResetLimit    = "password_reset_rate_limit"
)

// Service reads and writes typed runtime settings. Values are stored as text
// with a type discriminant; each variant has its own parse and serialize
// path. Typed getters return the supplied default when the row is missing,
// has a different discriminant, or fails to parse.
type Service interface {
	GetString(ctx context.Context, key, def string) string
	GetInt(ctx context.Context, key string, def int) int
	GetFloat(ctx context.Context, key string, def float64) float64
	GetBool(ctx context.Context, key string, def bool) bool
	GetJSON(ctx context.Context, key string, out any) error

	Set(ctx context.Context, key string, valueType enums.SettingValueType, raw string) (*models.Setting, error)
	List(ctx context.Context) ([]models.Setting, error)
	Delete(ctx context.Context, key string) error
}

type service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func parseNumber(raw string) (float64, error) {
	return strconv.ParseFloat(raw, 64)
}

func parseBoolean(raw string) (bool, error) {
	return strconv.ParseBool(raw)
}

func validateJSON(raw string) error {
	if !json.Valid([]byte(raw)) {
		return fmt.Errorf("invalid json payload")
	}
	return nil
}

// validateRaw rejects a value that does not parse under its discriminant, so
// a bad write never poisons later reads.
func validateRaw(valueType enums.SettingValueType, raw string) error {
	switch valueType {
	case enums.SettingValueTypeString:
		return nil
	case enums.SettingValueTypeNumber:
		_, err := parseNumber(raw)
		return err
	case enums.SettingValueTypeBoolean:
		_, err := parseBoolean(raw)
		return err
	case enums.SettingValueTypeJSON:
		return validateJSON(raw)
	default:
		return fmt.Errorf("unknown value type %q", valueType)
	}
}

func (s *service) load(ctx context.Context, key string, want enums.SettingValueType) (string, bool) {
	setting, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			s.logg.Warn(s.logg.WithField(ctx, "setting_key", key), "setting lookup failed, using default")
		}
		return "", false
	}
	if setting.ValueType != want {
		s.logg.Warn(s.logg.WithField(ctx, "setting_key", key), "setting type mismatch, using default")
		return "", false
	}
	return setting.Value, true
}

func (s *service) GetString(ctx context.Context, key, def string) string {
	raw, ok := s.load(ctx, key, enums.SettingValueTypeString)
	if !ok {
		return def
	}
	return raw
}

func (s *service) GetInt(ctx context.Context, key string, def int) int {
	value := s.GetFloat(ctx, key, float64(def))
	return int(value)
}

func (s *service) GetFloat(ctx context.Context, key string, def float64) float64 {
	raw, ok := s.load(ctx, key, enums.SettingValueTypeNumber)
	if !ok {
		return def
	}
	value, err := parseNumber(raw)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "setting_key", key), "setting value unparsable, using default")
		return def
	}
	return value
}

func (s *service) GetBool(ctx context.Context, key string, def bool) bool {
	raw, ok := s.load(ctx, key, enums.SettingValueTypeBoolean)
	if !ok {
		return def
	}
	value, err := parseBoolean(raw)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "setting_key", key), "setting value unparsable, using default")
		return def
	}
	return value
}

func (s *service) GetJSON(ctx context.Context, key string, out any) error {
	raw, ok := s.load(ctx, key, enums.SettingValueTypeJSON)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "setting not found")
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode setting")
	}
	return nil
}

func (s *service) Set(ctx context.Context, key string, valueType enums.SettingValueType, raw string) (*models.Setting, error) {
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "setting key required")
	}
	if !valueType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown setting value type")
	}
	if err := validateRaw(valueType, raw); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "setting value does not match its type")
	}

	setting := &models.Setting{
		Key:       key,
		Value:     raw,
		ValueType: valueType,
	}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store setting")
	}
	return setting, nil
}

func (s *service) List(ctx context.Context) ([]models.Setting, error) {
	settings, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list settings")
	}
	return settings, nil
}

func (s *service) Delete(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete setting")
	}
	return nil
}
