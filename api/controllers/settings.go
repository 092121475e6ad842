package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gomartvn/gomart-backend/api/responses"
	"github.com/gomartvn/gomart-backend/api/validators"
	"github.com/gomartvn/gomart-backend/internal/settings"
	"github.com/gomartvn/gomart-backend/pkg/db/models"
	"github.com/gomartvn/gomart-backend/pkg/enums"
	"github.com/gomartvn/gomart-backend/pkg/logger"
)

type setSettingRequest struct {
	Key       string `json:"key" validate:"required"`
	ValueType string `json:"value_type" validate:"required,oneof=string number boolean json"`
	Value     string `json:"value" validate:"required"`
}

type settingResponse struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	ValueType string    `json:"value_type"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newSettingResponse(setting *models.Setting) settingResponse {
	return settingResponse{
		Key:       setting.Key,
		Value:     setting.Value,
		ValueType: string(setting.ValueType),
		UpdatedAt: setting.UpdatedAt,
	}
}

func ListSettings(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		resp := make([]settingResponse, 0, len(list))
		for i := range list {
			resp = append(resp, newSettingResponse(&list[i]))
		}
		responses.WriteSuccess(w, resp)
	}
}

// SetSetting validates the raw value against its declared type before
// upserting, so a malformed override can never poison runtime reads.
func SetSetting(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body setSettingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		setting, err := svc.Set(r.Context(), body.Key, enums.SettingValueType(body.ValueType), body.Value)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSettingResponse(setting))
	}
}

func DeleteSetting(svc settings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
