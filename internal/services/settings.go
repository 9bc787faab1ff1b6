package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/analyzer"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/repository"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

const (
	KeyAPIURL         = "ai_api_url"
	KeyAPIKey         = "ai_api_key"
	KeyDefaultModel   = "ai_default_model"
	KeyModels         = "ai_models"
	KeyTimeout        = "ai_timeout"
	KeyProxyEnabled   = "proxy_enabled"
	KeyProxyURL       = "proxy_url"
	KeyProxyUsername  = "proxy_username"
	KeyProxyPassword  = "proxy_password"
	KeyOCRPrompt      = "ocr_prompt_template"
	KeyAnalysisPrompt = "ai_analysis_prompt_template"
)

const (
	fallbackModel       = "gpt-4o-mini"
	maxSettingKeyLength = 100
)

const DefaultOCRPrompt = `请识别图片中的医疗检查报告，提取所有检查指标。请严格按照以下JSON格式返回数组：` +
	`[{"name":"指标名称","value":"数值","unit":"单位","reference_range":"参考范围","status":"正常/异常"}]。` +
	`注意：reference_range字段请统一使用"reference_range"作为键名；status字段请依据数值和参考范围判断，仅返回"正常"或"异常"；` +
	`如果图片中没有明确状态标记，请根据数值自行判断。只返回JSON数组，不要返回其他内容。`

const DefaultAnalysisPrompt = "请根据以下检查数据，综合分析患者的健康状况，指出异常指标，提供治疗建议和生活方式改善方案。请以中文回复，使用Markdown格式。"

var aiKeys = []string{
	KeyAPIURL, KeyAPIKey, KeyDefaultModel, KeyModels, KeyTimeout,
	KeyProxyEnabled, KeyProxyURL, KeyProxyUsername, KeyProxyPassword,
	KeyOCRPrompt, KeyAnalysisPrompt,
}

type SettingsService interface {
	Get(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, key, value string) error
}

type settingsService struct {
	*Deps
}

func NewSettingsService(d *Deps) SettingsService {
	return &settingsService{Deps: d}
}

func (s *settingsService) Get(ctx context.Context, key string) (string, error) {
	var value string
	var found bool
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		value, found, err = tx.GetSetting(ctx, key)
		return err
	})
	if err != nil {
		s.Logger.Error("Failed to read setting", "key", key, "error", err)
		return "", utils.NewInternalError("Failed to read setting")
	}
	if !found {
		return "", utils.NewNotFoundError(fmt.Sprintf("Setting %q not found", key))
	}
	return value, nil
}

func (s *settingsService) Save(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > maxSettingKeyLength {
		return utils.NewBadRequestError("Setting key must be 1-100 characters")
	}
	if err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		return tx.UpsertSetting(ctx, key, value)
	}); err != nil {
		s.Logger.Error("Failed to save setting", "key", key, "error", err)
		return utils.NewInternalError("Failed to save setting")
	}
	return nil
}

// aiConfig is the resolved completion-service configuration and prompts.
type aiConfig struct {
	analyzer.Settings
	OCRPrompt      string
	AnalysisPrompt string
}

// loadAIConfig reads stored settings on tx; stored values win over the
// process environment.
func (d *Deps) loadAIConfig(ctx context.Context, tx *repository.Tx) (aiConfig, error) {
	stored, err := tx.GetSettings(ctx, aiKeys...)
	if err != nil {
		return aiConfig{}, err
	}
	return resolveAIConfig(stored, d.Config.AIAPIURL, d.Config.AIAPIKey, d.Config.AIModel, d.Config.AITimeout), nil
}

func resolveAIConfig(stored map[string]string, envURL, envKey, envModel string, envTimeout time.Duration) aiConfig {
	pick := func(key, fallback string) string {
		if v := strings.TrimSpace(stored[key]); v != "" {
			return v
		}
		return fallback
	}

	timeout := envTimeout
	if secs, err := strconv.Atoi(strings.TrimSpace(stored[KeyTimeout])); err == nil && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	return aiConfig{
		Settings: analyzer.Settings{
			APIURL:        pick(KeyAPIURL, envURL),
			APIKey:        pick(KeyAPIKey, envKey),
			Model:         resolveModel(stored, envModel),
			Timeout:       timeout,
			ProxyEnabled:  strings.EqualFold(strings.TrimSpace(stored[KeyProxyEnabled]), "true"),
			ProxyURL:      stored[KeyProxyURL],
			ProxyUsername: stored[KeyProxyUsername],
			ProxyPassword: stored[KeyProxyPassword],
		},
		OCRPrompt:      pick(KeyOCRPrompt, DefaultOCRPrompt),
		AnalysisPrompt: pick(KeyAnalysisPrompt, DefaultAnalysisPrompt),
	}
}

// resolveModel prefers the stored default, then the first configured model,
// then the environment.
func resolveModel(stored map[string]string, envModel string) string {
	if m := strings.TrimSpace(stored[KeyDefaultModel]); m != "" {
		return m
	}
	var models []string
	if err := json.Unmarshal([]byte(stored[KeyModels]), &models); err == nil {
		for _, m := range models {
			if m = strings.TrimSpace(m); m != "" {
				return m
			}
		}
	}
	if envModel != "" {
		return envModel
	}
	return fallbackModel
}

// newCompleter turns a configuration problem into an input error.
func (d *Deps) newCompleter(cfg aiConfig) (analyzer.Completer, error) {
	client, err := analyzer.NewClient(cfg.Settings, d.Logger)
	if err != nil {
		return nil, utils.NewBadRequestError(fmt.Sprintf("AI service is not configured: %v", err))
	}
	return client, nil
}
