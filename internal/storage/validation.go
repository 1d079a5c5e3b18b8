package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/flowledger/ledgerd/internal/model"
)

// Validation errors.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNilContext   = errors.New("context cannot be nil")
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

func validateString(ctx context.Context, value, name string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if value == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrInvalidInput, name)
	}
	return nil
}

func validateEvent(ctx context.Context, event *model.UniversalEvent) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if event == nil {
		return fmt.Errorf("%w: event cannot be nil", ErrInvalidInput)
	}
	if event.ID == "" {
		return fmt.Errorf("%w: event id cannot be empty", ErrInvalidInput)
	}
	if event.TenantID == "" {
		return fmt.Errorf("%w: event tenant id cannot be empty", ErrInvalidInput)
	}
	if event.Confidence < 0 || event.Confidence > 100 {
		return fmt.Errorf("%w: confidence %d outside [0,100]", ErrInvalidInput, event.Confidence)
	}
	return nil
}

func validateQuarantine(ctx context.Context, record *model.QuarantineRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: quarantine record cannot be nil", ErrInvalidInput)
	}
	if record.ID == "" || record.TenantID == "" || record.EventID == "" {
		return fmt.Errorf("%w: quarantine record requires id, tenant id and event id", ErrInvalidInput)
	}
	return nil
}

func validatePattern(ctx context.Context, pattern *model.LearnedPattern) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if pattern == nil {
		return fmt.Errorf("%w: pattern cannot be nil", ErrInvalidInput)
	}
	if pattern.TenantID == "" || pattern.Signature == "" || pattern.Category == "" {
		return fmt.Errorf("%w: pattern requires tenant id, signature and category", ErrInvalidInput)
	}
	return nil
}
