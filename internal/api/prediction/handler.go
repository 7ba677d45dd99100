package prediction

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"phishguard/internal/api/respond"
	"phishguard/internal/domain/phishing"
	"phishguard/internal/services/prediction"
	"phishguard/pkg/errors"
	"phishguard/pkg/logger"
)

const detailModelNotLoaded = "Model not loaded"

var errBodyTooLarge = errors.Wrap(errors.ErrInvalidInput, "request body too large")

// Predictor serves predictions
type Predictor interface {
	Predict(ctx context.Context, record phishing.FeatureRecord) (*phishing.Prediction, error)
}

// ModelState is the read-only view of the engine the handlers need
type ModelState interface {
	Loaded() bool
	Cause() error
	Schema() phishing.Schema
	Info(topN int) (*prediction.ModelInfo, error)
}

// Options configures request validation and /model/info
type Options struct {
	RequireAllFields    bool
	RejectUnknownFields bool
	InfoTopN            int
	MaxBodyBytes        int64
}

// Handler serves POST /predict and GET /model/info
type Handler struct {
	predictor Predictor
	model     ModelState
	opts      Options
	log       *logger.Logger
}

// New creates a new prediction handler
func New(predictor Predictor, model ModelState, opts Options, log *logger.Logger) *Handler {
	if opts.InfoTopN <= 0 {
		opts.InfoTopN = 10
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 64 << 10
	}
	return &Handler{
		predictor: predictor,
		model:     model,
		opts:      opts,
		log:       log.With("component", "prediction_handler"),
	}
}

// HandlePredict classifies the feature record in the request body
func (h *Handler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	if !h.model.Loaded() {
		h.unavailable(w)
		return
	}

	record, fieldErrs, err := h.decode(w, r)
	if errors.Is(err, errBodyTooLarge) {
		respond.Detail(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	if err != nil {
		respond.JSON(w, http.StatusUnprocessableEntity, respond.ErrorBody{
			Detail: "Request body must be a JSON object",
			Error:  err.Error(),
		})
		return
	}
	if len(fieldErrs) > 0 {
		respond.JSON(w, http.StatusUnprocessableEntity, respond.ErrorBody{
			Detail: "Validation error",
			Errors: fieldErrs,
		})
		return
	}

	p, err := h.predictor.Predict(r.Context(), record)
	if err != nil {
		if errors.Is(err, errors.ErrModelUnavailable) {
			h.unavailable(w)
			return
		}
		h.log.ErrorWithContext(r.Context(), err, map[string]string{"endpoint": "predict"})
		respond.Detail(w, http.StatusInternalServerError, "Prediction error: "+err.Error())
		return
	}

	respond.JSON(w, http.StatusOK, p)
}

// decode reads a JSON object into a FeatureRecord and applies the strict checks
func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (phishing.FeatureRecord, []respond.FieldError, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	dec.UseNumber()

	var body interface{}
	if err := dec.Decode(&body); err != nil {
		if err == io.EOF {
			return nil, nil, errors.Wrap(errors.ErrMalformedInput, "empty body")
		}
		return nil, nil, decodeError(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		if err != nil {
			return nil, nil, decodeError(err)
		}
		return nil, nil, errors.Wrap(errors.ErrMalformedInput, "unexpected data after the JSON object")
	}

	obj, ok := body.(map[string]interface{})
	if !ok {
		return nil, nil, errors.Wrap(errors.ErrMalformedInput, "body is not an object")
	}
	record := phishing.FeatureRecord(obj)

	var fieldErrs []respond.FieldError
	schema := h.model.Schema()
	if h.opts.RequireAllFields {
		for _, name := range phishing.Missing(record, schema) {
			fieldErrs = append(fieldErrs, toFieldError(errors.NewValidationError(name, "field required")))
		}
	}
	if h.opts.RejectUnknownFields {
		for _, name := range phishing.Unknown(record, schema) {
			fieldErrs = append(fieldErrs, toFieldError(errors.NewValidationError(name, "extra fields not permitted")))
		}
	}
	return record, fieldErrs, nil
}

func decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errors.Wrapf(errBodyTooLarge, "limit %d bytes", tooLarge.Limit)
	}
	return errors.Wrap(errors.ErrMalformedInput, err.Error())
}

func toFieldError(err *errors.ValidationError) respond.FieldError {
	return respond.FieldError{Field: err.Field, Message: err.Message}
}

// HandleModelInfo reports model metadata and the most important features
func (h *Handler) HandleModelInfo(w http.ResponseWriter, r *http.Request) {
	if !h.model.Loaded() {
		h.unavailable(w)
		return
	}

	info, err := h.model.Info(h.opts.InfoTopN)
	if err != nil {
		if errors.Is(err, errors.ErrModelUnavailable) {
			h.unavailable(w)
			return
		}
		h.log.ErrorWithContext(r.Context(), err, map[string]string{"endpoint": "model_info"})
		respond.Detail(w, http.StatusInternalServerError, err.Error())
		return
	}

	respond.JSON(w, http.StatusOK, info)
}

func (h *Handler) unavailable(w http.ResponseWriter) {
	body := respond.ErrorBody{Detail: detailModelNotLoaded}
	if cause := h.model.Cause(); cause != nil {
		body.Error = cause.Error()
	}
	respond.JSON(w, http.StatusServiceUnavailable, body)
}
