// Package ocr implements the receipt-OCR collaborator boundary from §1/§4.1:
// the vision service is opaque, but parsing its textual output into reading
// records, and the retry loop around its async operation, are in scope.
package ocr

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/apierr"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/idgen"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/models"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/reading"
	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/volume"
)

// pollInterval and maxAttempts implement §5's "fixed ~2s delay, ~15 attempts".
const (
	pollInterval = 2 * time.Second
	maxAttempts  = 15
)

// OperationStatus is the OCR collaborator's async-operation terminal state.
type OperationStatus string

const (
	StatusPending   OperationStatus = "pending"
	StatusSucceeded OperationStatus = "succeeded"
	StatusFailed    OperationStatus = "failed"
)

// Collaborator is the opaque remote vision service (§1 scope: treated as a
// "text extractor", never modeled further than this interface).
type Collaborator interface {
	Submit(ctx context.Context, imageBytes []byte) (operationID string, err error)
	Poll(ctx context.Context, operationID string) (status OperationStatus, text string, err error)
}

// ParsedReading is one {nozzleNumber, cumulativeVolume} line from the
// OCR collaborator's textual output, with optional date/time overrides.
type ParsedReading struct {
	NozzleNumber    int
	CumulativeVolume volume.Litres
	ReadingDate     *time.Time
}

// ParsedReceipt is parse_receipt's decoded shape (§4.1).
type ParsedReceipt struct {
	PumpSerial string
	Readings   []ParsedReading
}

// TextParser turns the collaborator's raw textual output into a
// ParsedReceipt; kept separate from Collaborator so the parsing logic is
// independently testable without a live OCR round trip.
type TextParser interface {
	Parse(text string) (*ParsedReceipt, error)
}

// PumpRepo resolves or auto-creates a station's pumps by serial.
type PumpRepo interface {
	GetBySerial(ctx context.Context, stationID idgen.ID, serial string) (*models.Pump, error)
	Create(ctx context.Context, stationID idgen.ID, serial string) (*models.Pump, error)
}

// NozzleRepo resolves or auto-creates a pump's nozzles by number. Service
// creates missing nozzles with defaultFuelType's mapping (nozzles 1-2 =
// petrol, every higher number = diesel); no per-nozzle override is
// applied (§4.1).
type NozzleRepo interface {
	GetByNumber(ctx context.Context, pumpID idgen.ID, number int) (*models.Nozzle, error)
	Create(ctx context.Context, pumpID idgen.ID, number int, fuelType models.FuelType) (*models.Nozzle, error)
}

// defaultFuelType implements the nozzle-number-to-fuel-type fallback
// mapping (§4.1).
func defaultFuelType(nozzleNumber int) models.FuelType {
	if nozzleNumber <= 2 {
		return models.FuelPetrol
	}
	return models.FuelDiesel
}

// Service drives the OCR submit/poll loop and auto-creates missing
// topology before delegating each parsed line to reading.Service.Create.
type Service struct {
	collaborator Collaborator
	parser       TextParser
	pumps        PumpRepo
	nozzles      NozzleRepo
	readings     *reading.Service
}

func NewService(collaborator Collaborator, parser TextParser, pumps PumpRepo, nozzles NozzleRepo, readings *reading.Service) *Service {
	return &Service{collaborator: collaborator, parser: parser, pumps: pumps, nozzles: nozzles, readings: readings}
}

// ParseReceipt implements parse_receipt (§4.1): submits the image, polls
// until terminal with a fixed ~2s backoff capped at ~15 attempts, parses
// the result, auto-creates missing Pumps/Nozzles, then creates one reading
// per parsed line (create_reading's own idempotency check skips duplicates).
func (s *Service) ParseReceipt(ctx context.Context, stationID idgen.ID, imageBytes []byte, expectedPumpSerial string, caller reading.CreateInput) ([]*models.NozzleReading, error) {
	opID, err := s.collaborator.Submit(ctx, imageBytes)
	if err != nil {
		return nil, apierr.Wrap(apierr.External, "OCR_SUBMIT_FAILED", "submitting receipt to OCR collaborator failed", err)
	}

	text, err := s.pollUntilTerminal(ctx, opID)
	if err != nil {
		return nil, err
	}

	parsed, err := s.parser.Parse(text)
	if err != nil {
		return nil, apierr.Wrap(apierr.External, "OCR_PARSE_FAILED", "parsing OCR output failed", err)
	}
	if expectedPumpSerial != "" && parsed.PumpSerial != expectedPumpSerial {
		return nil, apierr.Validationf("VALIDATION", "OCR receipt pump serial %q does not match expected %q", parsed.PumpSerial, expectedPumpSerial)
	}

	pump, err := s.pumps.GetBySerial(ctx, stationID, parsed.PumpSerial)
	if err != nil {
		return nil, err
	}
	if pump == nil {
		pump, err = s.pumps.Create(ctx, stationID, parsed.PumpSerial)
		if err != nil {
			return nil, err
		}
	}

	var created []*models.NozzleReading
	for _, pr := range parsed.Readings {
		nozzle, err := s.nozzles.GetByNumber(ctx, pump.ID, pr.NozzleNumber)
		if err != nil {
			return nil, err
		}
		if nozzle == nil {
			nozzle, err = s.nozzles.Create(ctx, pump.ID, pr.NozzleNumber, defaultFuelType(pr.NozzleNumber))
			if err != nil {
				return nil, err
			}
		}

		in := caller
		in.NozzleID = nozzle.ID
		in.ReadingValue = pr.CumulativeVolume
		in.Source = models.SourceOCR
		if pr.ReadingDate != nil {
			in.ReadingDate = *pr.ReadingDate
		}

		// Create is itself idempotent on (nozzle, readingDate, readingValue)
		// — a duplicate line returns the existing row rather than erroring
		// (§4.1 "skipping duplicates by idempotency key").
		r, err := s.readings.Create(ctx, in)
		if err != nil {
			return nil, err
		}
		created = append(created, r)
	}
	return created, nil
}

// pollUntilTerminal polls the collaborator on a fixed ~2s interval up to
// ~15 attempts and returns a timeout as an External error, not an internal
// server error (§4.1 "Failure semantics"). No Upload record is written or
// marked failed.
func (s *Service) pollUntilTerminal(ctx context.Context, operationID string) (string, error) {
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(pollInterval), maxAttempts)
	b = backoff.WithContext(b, ctx)

	var text string
	operation := func() error {
		status, t, err := s.collaborator.Poll(ctx, operationID)
		if err != nil {
			return backoff.Permanent(apierr.Wrap(apierr.External, "OCR_POLL_FAILED", "polling OCR operation failed", err))
		}
		switch status {
		case StatusSucceeded:
			text = t
			return nil
		case StatusFailed:
			return backoff.Permanent(apierr.New(apierr.External, "OCR_FAILED", "OCR operation reported failure"))
		default:
			return fmt.Errorf("ocr: operation %s still pending", operationID)
		}
	}

	if err := backoff.Retry(operation, b); err != nil {
		if apiErr, ok := apierr.As(err); ok {
			return "", apiErr
		}
		return "", apierr.Wrap(apierr.External, "OCR_TIMEOUT", "OCR operation did not complete within the retry budget", err)
	}
	return text, nil
}
