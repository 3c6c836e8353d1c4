package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/benefits-engine/generic"
	"github.com/warp/benefits-engine/org"
)

// =============================================================================
// SERVICE - Event lifecycle
// =============================================================================

// Service validates and stores events. Writes are serialized so the overlap
// check and the save it guards cannot interleave.
type Service struct {
	store     Store
	dir       org.Directory
	validator *OverlapValidator
	logger    *slog.Logger
	mu        sync.Mutex
}

func NewService(store Store, dir org.Directory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		dir:       dir,
		validator: NewOverlapValidator(store),
		logger:    logger,
	}
}

func (s *Service) Validator() *OverlapValidator { return s.validator }

// Create stores a new event with a fresh id. A leave event that overlaps an
// existing one is refused with an *OverlapError.
func (s *Service) Create(ctx context.Context, e Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e = withID(e, uuid.NewString())
	if err := s.validate(ctx, e, ""); err != nil {
		return nil, err
	}
	if err := s.store.SaveEvent(ctx, ToRecord(e)); err != nil {
		return nil, fmt.Errorf("save event: %w", err)
	}
	return e, nil
}

// Update replaces event id in place. The event's own current interval is
// excluded from the overlap check.
func (s *Service) Update(ctx context.Context, id string, e Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if existing == nil {
		return nil, &generic.NotFoundError{Kind: "event", ID: id}
	}

	e = withID(e, id)
	if err := s.validate(ctx, e, id); err != nil {
		return nil, err
	}
	if err := s.store.SaveEvent(ctx, ToRecord(e)); err != nil {
		return nil, fmt.Errorf("save event: %w", err)
	}
	return e, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("load event: %w", err)
	}
	if existing == nil {
		return &generic.NotFoundError{Kind: "event", ID: id}
	}
	return s.store.DeleteEvent(ctx, id)
}

// ForEmployee returns the decoded history of one employee.
func (s *Service) ForEmployee(ctx context.Context, employeeID string) ([]Event, error) {
	records, err := s.store.ListEventsByEmployee(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	return Decode(records), nil
}

func (s *Service) validate(ctx context.Context, e Event, excludeID string) error {
	emp, err := s.dir.GetEmployee(ctx, e.EmployeeRef())
	if err != nil {
		return fmt.Errorf("load employee: %w", err)
	}
	if emp == nil {
		return &generic.ValidationError{Field: "employeeId", Message: "unknown employee " + e.EmployeeRef()}
	}

	switch v := e.(type) {
	case LeaveEvent:
		if !v.Type.IsLeave() {
			return &generic.ValidationError{Field: "type", Message: "not a leave type: " + string(v.Type)}
		}
		p, err := v.Period()
		if err != nil {
			return &generic.ValidationError{Field: "endDate", Message: err.Error()}
		}
		clash, err := s.validator.Conflict(ctx, v.EmployeeID, p, excludeID)
		if err != nil {
			return err
		}
		if clash != nil {
			return &OverlapError{EmployeeID: v.EmployeeID, StartDate: clash.StartDate, EndDate: clash.EndDate}
		}
	case AdjustmentEvent:
		if !v.ReferenceMonth.Valid() {
			return &generic.ValidationError{Field: "referenceMonth", Message: "expected YYYY-MM"}
		}
		if !v.BenefitType.Valid() {
			return &generic.ValidationError{Field: "benefitType", Message: "unknown benefit type " + string(v.BenefitType)}
		}
	default:
		return ErrInvalidEvent
	}
	return nil
}

// =============================================================================
// MASS CREATION
// =============================================================================

// MassTemplate is one form submission fanned out to every employee in a
// scope.
type MassTemplate struct {
	Type           Kind
	StartDate      string
	EndDate        string
	ReferenceMonth string
	BenefitType    BenefitType
	Value          decimal.Decimal
	Notes          string
}

// MassResult counts what happened per employee.
type MassResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// CreateMass creates one event per employee in scope. Leave events that
// would overlap are skipped and counted; the rest of the batch proceeds.
// The template itself is validated first, and an invalid template writes
// nothing.
func (s *Service) CreateMass(ctx context.Context, scope org.Scope, t MassTemplate) (MassResult, error) {
	proto, err := t.event()
	if err != nil {
		return MassResult{}, err
	}

	employees, err := scope.Employees(ctx, s.dir)
	if err != nil {
		return MassResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result MassResult
	batch := make([]Record, 0, len(employees))
	for _, emp := range employees {
		e := forEmployee(proto, emp.ID, uuid.NewString())
		if leave, ok := e.(LeaveEvent); ok {
			p, _ := leave.Period()
			clash, err := s.validator.Conflict(ctx, emp.ID, p, "")
			if err != nil {
				return MassResult{}, err
			}
			if clash != nil {
				result.Skipped++
				continue
			}
		}
		batch = append(batch, ToRecord(e))
		result.Created++
	}

	if len(batch) > 0 {
		if err := s.store.SaveEvents(ctx, batch); err != nil {
			return MassResult{}, fmt.Errorf("save events: %w", err)
		}
	}
	s.logger.Info("mass event creation",
		"scope", scope.String(), "type", string(t.Type),
		"created", result.Created, "skipped", result.Skipped)
	return result, nil
}

func (t MassTemplate) event() (Event, error) {
	switch {
	case t.Type.IsLeave():
		e := LeaveEvent{Type: t.Type, StartDate: t.StartDate, EndDate: t.EndDate, Notes: t.Notes}
		if _, err := e.Period(); err != nil {
			return nil, &generic.ValidationError{Field: "endDate", Message: err.Error()}
		}
		return e, nil
	case t.Type == KindAdjustment:
		month, err := generic.ParseMonthKey(t.ReferenceMonth)
		if err != nil {
			return nil, &generic.ValidationError{Field: "referenceMonth", Message: err.Error()}
		}
		if !t.BenefitType.Valid() {
			return nil, &generic.ValidationError{Field: "benefitType", Message: "unknown benefit type " + string(t.BenefitType)}
		}
		return AdjustmentEvent{ReferenceMonth: month, BenefitType: t.BenefitType, Value: t.Value, Notes: t.Notes}, nil
	}
	return nil, &generic.ValidationError{Field: "type", Message: "unknown event type " + string(t.Type)}
}

func forEmployee(proto Event, employeeID, id string) Event {
	switch v := proto.(type) {
	case LeaveEvent:
		v.ID, v.EmployeeID = id, employeeID
		return v
	case AdjustmentEvent:
		v.ID, v.EmployeeID = id, employeeID
		return v
	}
	return proto
}
