package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/campfire-hq/backend/internal/results"
	"github.com/campfire-hq/backend/pkg/queue"
	"github.com/campfire-hq/backend/pkg/storage"
)

// ReportProcessor processes report render jobs: render the result to HTML,
// convert it to PDF via the external renderer service, upload to S3, update DB.
type ReportProcessor struct {
	resultRepo  *results.Repository
	s3          *storage.S3
	queue       *queue.Queue
	rendererURL string
	http        *resty.Client
	logger      *zap.Logger
}

// NewReportProcessor creates a report render processor.
func NewReportProcessor(resultRepo *results.Repository, s3 *storage.S3, q *queue.Queue, rendererURL string, logger *zap.Logger) *ReportProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(60 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)
	return &ReportProcessor{
		resultRepo:  resultRepo,
		s3:          s3,
		queue:       q,
		rendererURL: rendererURL,
		http:        client,
		logger:      logger,
	}
}

// Process executes one report render job.
func (p *ReportProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeReportRender {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ReportRenderPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	res, err := p.resultRepo.GetByID(ctx, payload.ResultID)
	if err != nil {
		return fmt.Errorf("load result: %w", err)
	}
	if res == nil {
		// The result was deleted (tenant cascade); nothing to render.
		p.logger.Warn("result gone, skipping render", zap.String("result_id", payload.ResultID.String()))
		return nil
	}
	if res.PDFKey != "" {
		p.logger.Info("report already rendered", zap.String("result_id", res.ID.String()))
		return nil
	}

	html, err := RenderReportHTML(res)
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	resp, err := p.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/html; charset=utf-8").
		SetBody(html).
		Post(p.rendererURL)
	if err != nil {
		return fmt.Errorf("renderer request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("renderer status: %d", resp.StatusCode())
	}
	pdf := resp.Body()
	if len(pdf) == 0 {
		return fmt.Errorf("renderer returned empty body")
	}

	key := storage.ReportKey(payload.TenantID.String(), res.ID.String())
	s3URL, err := p.s3.Upload(ctx, p.s3.ReportsBucket(), key, "application/pdf", bytes.NewReader(pdf), int64(len(pdf)), false)
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	if err := p.resultRepo.UpdatePDF(ctx, res.ID, key, s3URL); err != nil {
		p.logger.Error("update result pdf failed", zap.Error(err), zap.String("result_id", res.ID.String()))
		return fmt.Errorf("update db: %w", err)
	}

	p.logger.Info("report render completed", zap.String("result_id", res.ID.String()), zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ReportProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("report worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
