package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/BerylCAtieno/checkup-digitizer-api/internal/analyzer"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/events"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/lifecycle"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/models"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/repository"
	"github.com/BerylCAtieno/checkup-digitizer-api/internal/utils"
)

const (
	analysisSystemPrompt = "你是一位专业的医疗健康分析助手。请根据用户提供的检查报告数据，给出全面、专业的健康分析和建议。"
	analysisMaxTokens    = 8192
	historyRecords       = 3

	DefaultPageSize = 10
	MaxPageSize     = 100
)

type AnalysisService interface {
	// Start records a processing analysis and streams the narrative in the
	// background. The returned ID is the analysis.
	Start(ctx context.Context, recordID string) (*models.AcceptedResponse, error)
	List(ctx context.Context, recordID string) ([]models.AiAnalysis, error)
	History(ctx context.Context, page, pageSize int) (*models.AnalysisHistoryPage, error)
	UpdateContent(ctx context.Context, id, content string) (*models.AiAnalysis, error)
}

type analysisService struct {
	*Deps
}

func NewAnalysisService(d *Deps) AnalysisService {
	return &analysisService{Deps: d}
}

func analysisJobKey(recordID string) string { return "analysis:" + recordID }

// projectItems is one successful extraction with its project name.
type projectItems struct {
	Project string
	Items   []models.Reading
}

type pastRecord struct {
	Date    string
	Results []projectItems
}

// promptData is what the analysis prompt is assembled from.
type promptData struct {
	CheckupDate string
	Current     []projectItems
	History     []pastRecord
	Previous    string
}

func (s *analysisService) Start(ctx context.Context, recordID string) (*models.AcceptedResponse, error) {
	if s.Queue.Running(analysisJobKey(recordID)) {
		return nil, utils.NewConflictError("Analysis is already running for this record")
	}

	var (
		record *models.CheckupRecord
		data   promptData
		cfg    aiConfig
	)
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		if record, err = tx.GetRecord(ctx, recordID); err != nil {
			return err
		}
		if record == nil {
			return utils.NewNotFoundError("Record not found")
		}
		if data, err = collectPromptData(ctx, tx, record); err != nil {
			return err
		}
		if len(data.Current) == 0 {
			return utils.NewBadRequestError("Record has no successful OCR results; run extraction first")
		}
		cfg, err = s.loadAIConfig(ctx, tx)
		return err
	})
	if err := s.wrap(err, "Failed to prepare analysis", "record_id", recordID); err != nil {
		return nil, err
	}

	completer, err := s.newCompleter(cfg)
	if err != nil {
		return nil, err
	}

	// Create placeholder
	a := &models.AiAnalysis{
		ID:            utils.GenerateID(),
		RecordID:      recordID,
		RequestPrompt: cfg.AnalysisPrompt + "\n\n" + buildPromptData(data),
		ModelUsed:     completer.Model(),
		Status:        models.StatusProcessing,
	}
	err = s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		if err := tx.InsertAnalysis(ctx, a); err != nil {
			return err
		}
		return tx.SetRecordStatus(ctx, recordID, lifecycle.StartAnalysis(record.Status))
	})
	if err := s.wrap(err, "Failed to create analysis", "record_id", recordID); err != nil {
		return nil, err
	}

	id, prompt := a.ID, a.RequestPrompt
	if err := s.Queue.Submit(analysisJobKey(recordID), func(jobCtx context.Context) error {
		return s.run(jobCtx, completer, recordID, id, prompt)
	}); err != nil {
		s.finish(background(ctx), recordID, id, "", err)
		return nil, submitError(err)
	}

	s.Logger.Info("Analysis queued", "record_id", recordID, "analysis_id", id, "model", completer.Model())
	return &models.AcceptedResponse{ID: id, Message: "Analysis started"}, nil
}

func collectPromptData(ctx context.Context, tx *repository.Tx, record *models.CheckupRecord) (promptData, error) {
	data := promptData{CheckupDate: record.CheckupDate}

	current, names, err := tx.ListSuccessfulOcrResults(ctx, record.ID)
	if err != nil {
		return data, err
	}
	data.Current = groupItems(current, names)

	others, err := tx.RecentOtherRecords(ctx, record.ID, historyRecords)
	if err != nil {
		return data, err
	}
	for _, o := range others {
		results, names, err := tx.ListSuccessfulOcrResults(ctx, o.ID)
		if err != nil {
			return data, err
		}
		data.History = append(data.History, pastRecord{Date: o.CheckupDate, Results: groupItems(results, names)})
	}

	prev, err := tx.PreviousAnalysis(ctx, record.ID)
	if err != nil {
		return data, err
	}
	if prev != nil {
		data.Previous = prev.ResponseContent
	}
	return data, nil
}

func groupItems(results []models.OcrResult, names []string) []projectItems {
	out := make([]projectItems, len(results))
	for i, r := range results {
		out[i] = projectItems{Project: names[i], Items: r.Items}
	}
	return out
}

// buildPromptData renders the current results, abnormal readings of
// recent checkups and the previous advice as markdown sections.
func buildPromptData(d promptData) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## 1. 本次检查结果（检查日期: %s）\n", d.CheckupDate)
	for _, p := range d.Current {
		fmt.Fprintf(&b, "### %s\n", p.Project)
		b.WriteString(itemsJSON(p.Items))
	}

	var history []string
	for _, rec := range d.History {
		var lines []string
		for _, p := range rec.Results {
			for _, it := range p.Items {
				if it.IsAbnormal {
					lines = append(lines, fmt.Sprintf("- [%s] %s: %s %s (参考: %s)",
						p.Project, it.Name, it.Value, it.Unit, it.ReferenceRange))
				}
			}
		}
		if len(lines) > 0 {
			history = append(history, fmt.Sprintf("### 日期: %s\n%s", rec.Date, strings.Join(lines, "\n")))
		}
	}
	if len(history) > 0 {
		b.WriteString("\n## 2. 近期历史异常记录（仅供参考对比）\n")
		b.WriteString(strings.Join(history, "\n"))
	}

	if strings.TrimSpace(d.Previous) != "" {
		b.WriteString("\n## 3. 上次 AI 分析建议（仅供参考）\n")
		b.WriteString(d.Previous + "\n")
	}
	return b.String()
}

// itemsJSON encodes items on one line followed by a newline, leaving
// characters such as < and > readable.
func itemsJSON(items []models.Reading) string {
	if items == nil {
		items = []models.Reading{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return "[]\n"
	}
	return buf.String()
}

func (s *analysisService) run(ctx context.Context, c analyzer.Completer, recordID, id, prompt string) error {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: analysisSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}
	content, err := c.Stream(ctx, messages, analysisMaxTokens, func(fragment string) {
		s.Metrics.StreamFragments.WithLabelValues("analysis").Inc()
		s.publish(ctx, events.AIStreamChunk, events.Chunk{RecordID: recordID, ID: id, Text: fragment})
	})
	s.finish(background(ctx), recordID, id, content, err)
	return err
}

// finish persists the outcome. Text received before a broken stream is
// kept as a successful analysis; no text at all is a failure.
func (s *analysisService) finish(ctx context.Context, recordID, id, content string, streamErr error) {
	failed := streamErr != nil && content == ""
	if streamErr != nil && !failed {
		s.Logger.Warn("Analysis stream ended early; keeping partial text",
			"analysis_id", id, "length", len(content), "error", streamErr)
	}

	a := &models.AiAnalysis{ID: id, ResponseContent: content, Status: models.StatusSuccess}
	var outcome error
	if failed {
		a.Status = models.StatusFailed
		a.ErrorMessage = streamErr.Error()
		outcome = streamErr
	}

	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		if err := tx.UpdateAnalysis(ctx, a); err != nil {
			return err
		}
		r, err := tx.GetRecord(ctx, recordID)
		if err != nil || r == nil {
			return err
		}
		return tx.SetRecordStatus(ctx, recordID, lifecycle.FinishAnalysis(r.Status, outcome))
	})
	if err != nil {
		s.Logger.Error("Failed to save analysis", "analysis_id", id, "error", err)
	}

	s.Metrics.Analyses.WithLabelValues(a.Status).Inc()
	if failed {
		s.Logger.Error("Analysis failed", "record_id", recordID, "analysis_id", id, "error", streamErr)
		s.publish(ctx, events.AIStreamError, events.Failure{RecordID: recordID, ID: id, Error: a.ErrorMessage})
		return
	}
	s.publish(ctx, events.AIStreamDone, events.StreamDone{RecordID: recordID, ID: id, Content: content})
}

func (s *analysisService) List(ctx context.Context, recordID string) ([]models.AiAnalysis, error) {
	var analyses []models.AiAnalysis
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		r, err := tx.GetRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if r == nil {
			return utils.NewNotFoundError("Record not found")
		}
		analyses, err = tx.ListAnalyses(ctx, recordID)
		return err
	})
	if err := s.wrap(err, "Failed to list analyses", "record_id", recordID); err != nil {
		return nil, err
	}
	return analyses, nil
}

// pageBounds clamps 1-based paging input.
func pageBounds(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func (s *analysisService) History(ctx context.Context, page, pageSize int) (*models.AnalysisHistoryPage, error) {
	page, pageSize = pageBounds(page, pageSize)
	out := &models.AnalysisHistoryPage{Page: page, PageSize: pageSize}
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		out.Items, out.Total, err = tx.AnalysisHistory(ctx, pageSize, (page-1)*pageSize)
		return err
	})
	if err := s.wrap(err, "Failed to load analysis history"); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *analysisService) UpdateContent(ctx context.Context, id, content string) (*models.AiAnalysis, error) {
	var a *models.AiAnalysis
	err := s.Store.WithTx(ctx, func(tx *repository.Tx) error {
		var err error
		if a, err = tx.GetAnalysis(ctx, id); err != nil {
			return err
		}
		if a == nil {
			return utils.NewNotFoundError("Analysis not found")
		}
		a.ResponseContent = content
		return tx.UpdateAnalysisContent(ctx, id, content)
	})
	if err := s.wrap(err, "Failed to update analysis", "analysis_id", id); err != nil {
		return nil, err
	}
	return a, nil
}
