package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"QuantLab/internal/domain/models"
	domrepo "QuantLab/internal/domain/repository"
	xhttp "QuantLab/pkg/http"
	pkgkafka "QuantLab/pkg/kafka"
	applogger "QuantLab/pkg/logger"
)

// Job kinds accepted on the jobs topic.
const (
	JobSimulate = "simulate"
	JobCompare  = "compare"
	JobStatArb  = "statarb"
	JobPredict  = "predict"
)

// Job is one asynchronous analysis request.
type Job struct {
	ID     string          `json:"id"`
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params"`
}

// JobResult is published to the results topic keyed by job id.
type JobResult struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Result    any    `json:"result,omitempty"`
}

// JobHandler consumes analysis jobs and publishes their results. Every job gets
// exactly one answer; only publish failures are returned for retry.
type JobHandler struct {
	topic   string
	sim     *SimulationUseCase
	pairs   *StatArbUseCase
	predict *PredictUseCase
	pub     domrepo.ResultPublisher
	timeout time.Duration
	l       *applogger.Logger
	newID   func() string
}

func NewJobHandler(topic string, sim *SimulationUseCase, pairs *StatArbUseCase, predict *PredictUseCase, pub domrepo.ResultPublisher, timeout time.Duration, l *applogger.Logger) *JobHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &JobHandler{
		topic:   topic,
		sim:     sim,
		pairs:   pairs,
		predict: predict,
		pub:     pub,
		timeout: timeout,
		l:       l,
		newID:   uuid.NewString,
	}
}

func (h *JobHandler) Topic() string { return h.topic }

func (h *JobHandler) Handle(ctx context.Context, b []byte) error {
	var job Job
	if err := json.Unmarshal(b, &job); err != nil {
		res := JobResult{ID: h.newID(), OK: false, Error: "malformed job: " + err.Error(), ErrorKind: "invalid_parameter"}
		return h.publish(ctx, res)
	}
	if job.ID == "" {
		job.ID = h.newID()
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := h.run(ctx, job)
	res := JobResult{ID: job.ID, Kind: job.Kind, OK: err == nil, Result: result}
	if err != nil {
		res.Error = err.Error()
		res.ErrorKind = models.ErrorKind(err)
		res.Result = nil
	}
	h.l.Info("job finished",
		applogger.String("id", job.ID),
		applogger.String("kind", job.Kind),
		applogger.Bool("ok", res.OK),
		applogger.String("error_kind", res.ErrorKind),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return h.publish(ctx, res)
}

func (h *JobHandler) publish(ctx context.Context, res JobResult) error {
	// The job context may already be past its deadline.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := h.pub.PublishResult(pctx, res.ID, res); err != nil {
		h.l.Error("publish job result", applogger.String("id", res.ID), applogger.Error(err))
		return fmt.Errorf("publish result: %w", err)
	}
	return nil
}

func (h *JobHandler) run(ctx context.Context, job Job) (any, error) {
	switch job.Kind {
	case JobSimulate:
		var req models.SimulateRequest
		if err := decodeParams(ctx, job.Params, &req); err != nil {
			return nil, err
		}
		return h.sim.Simulate(ctx, req, nil)
	case JobCompare:
		var req models.CompareRequest
		if err := decodeParams(ctx, job.Params, &req); err != nil {
			return nil, err
		}
		return h.sim.Compare(ctx, req)
	case JobStatArb:
		var req models.StatArbRequest
		if err := decodeParams(ctx, job.Params, &req); err != nil {
			return nil, err
		}
		return h.pairs.Run(ctx, req)
	case JobPredict:
		var req models.PredictRequest
		if err := decodeParams(ctx, job.Params, &req); err != nil {
			return nil, err
		}
		return h.predict.Run(ctx, req)
	default:
		return nil, &models.InvalidParameterError{Name: "kind", Value: job.Kind, Reason: "unknown job kind"}
	}
}

// decodeParams unmarshals raw into req, then applies defaults and validation.
func decodeParams(ctx context.Context, raw json.RawMessage, req any) error {
	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if err := json.Unmarshal(raw, req); err != nil {
			return &models.InvalidParameterError{Name: "params", Value: string(raw), Reason: err.Error()}
		}
	}
	if verr := xhttp.ValidateStruct(ctx, req); verr != nil {
		return &models.InvalidParameterError{Name: "params", Value: string(raw), Reason: xhttp.ValidationMessage(verr)}
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*JobHandler)(nil)
