package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/arnavshah/rota-api-go/pkg/database"
	"github.com/arnavshah/rota-api-go/pkg/models"
	"github.com/arnavshah/rota-api-go/pkg/scheduler"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrStaleRevision = errors.New("schedule was modified by someone else")
)

// Store defines the persistence operations used by the planner.
type Store interface {
	ListStaff(ctx context.Context, orgID string) ([]models.Staff, error)
	GetStaff(ctx context.Context, orgID, id string) (models.Staff, error)
	SaveStaff(ctx context.Context, orgID string, staff models.Staff) (models.Staff, error)
	SaveStaffBatch(ctx context.Context, orgID string, roster []models.Staff) ([]models.Staff, error)
	CreateSchedule(ctx context.Context, s *models.Schedule) error
	GetSchedule(ctx context.Context, orgID, id string) (*models.Schedule, error)
	SaveSchedule(ctx context.Context, s *models.Schedule) (models.Totals, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// Snapshot projects a schedule onto stable identifiers:
// ISO date -> shift name -> station id -> staff ids.
func Snapshot(s *models.Schedule) map[string]map[string]map[string][]string {
	out := make(map[string]map[string]map[string][]string, len(s.Days))
	for _, day := range s.Days {
		shifts := make(map[string]map[string][]string, len(day.Shifts))
		for _, sh := range day.Shifts {
			stations := make(map[string][]string, len(sh.Stations))
			for _, st := range sh.Stations {
				ids := make([]string, 0, len(st.Assigned))
				for _, a := range st.Assigned {
					ids = append(ids, a.ID)
				}
				stations[st.ID] = ids
			}
			shifts[sh.Name] = stations
		}
		out[day.Date] = shifts
	}
	return out
}

func (s *gormStore) ListStaff(ctx context.Context, orgID string) ([]models.Staff, error) {
	var records []database.StaffRecord
	if err := s.db.WithContext(ctx).Where("organization_id = ?", orgID).Order("created_at, id").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	staff := make([]models.Staff, 0, len(records))
	for _, r := range records {
		staff = append(staff, toStaff(r))
	}
	return staff, nil
}

func (s *gormStore) GetStaff(ctx context.Context, orgID, id string) (models.Staff, error) {
	var record database.StaffRecord
	err := s.db.WithContext(ctx).Where("organization_id = ? AND id = ?", orgID, id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Staff{}, fmt.Errorf("staff %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Staff{}, fmt.Errorf("failed to fetch staff %s: %w", id, err)
	}
	return toStaff(record), nil
}

// SaveStaff creates or updates a staff member. An empty id is assigned a new one.
func (s *gormStore) SaveStaff(ctx context.Context, orgID string, staff models.Staff) (models.Staff, error) {
	return saveStaff(s.db.WithContext(ctx), orgID, staff)
}

// SaveStaffBatch saves a roster in one transaction. Nothing is written if any
// member fails.
func (s *gormStore) SaveStaffBatch(ctx context.Context, orgID string, roster []models.Staff) ([]models.Staff, error) {
	saved := make([]models.Staff, 0, len(roster))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, staff := range roster {
			st, err := saveStaff(tx, orgID, staff)
			if err != nil {
				return err
			}
			saved = append(saved, st)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func saveStaff(db *gorm.DB, orgID string, staff models.Staff) (models.Staff, error) {
	if staff.ID == "" {
		staff.ID = uuid.NewString()
	}
	if staff.Availability == nil {
		staff.Availability = map[string]models.DayAvailability{}
	}
	record := database.StaffRecord{
		ID:               staff.ID,
		OrganizationID:   orgID,
		Name:             staff.Name,
		Role:             staff.Role,
		HourlyWage:       staff.HourlyWage,
		PerformanceScore: staff.PerformanceScore,
		Stations:         staff.Stations,
		Availability:     staff.Availability,
	}

	// ids are global; never let one organization overwrite another's record
	var existing []database.StaffRecord
	if err := db.Where("id = ?", staff.ID).Limit(1).Find(&existing).Error; err != nil {
		return models.Staff{}, fmt.Errorf("failed to check staff %s: %w", staff.ID, err)
	}
	if len(existing) > 0 && existing[0].OrganizationID != orgID {
		return models.Staff{}, fmt.Errorf("staff %s: %w", staff.ID, ErrNotFound)
	}

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "role", "hourly_wage", "performance_score", "stations", "availability", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return models.Staff{}, fmt.Errorf("failed to save staff %s: %w", staff.ID, err)
	}
	return staff, nil
}

func (s *gormStore) CreateSchedule(ctx context.Context, sched *models.Schedule) error {
	totals := scheduler.ComputeTotals(sched)
	record := toRecord(sched, totals)
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("failed to create schedule %s: %w", sched.ID, err)
	}
	return nil
}

func (s *gormStore) GetSchedule(ctx context.Context, orgID, id string) (*models.Schedule, error) {
	var record database.ScheduleRecord
	err := s.db.WithContext(ctx).Where("organization_id = ? AND id = ?", orgID, id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedule %s: %w", id, err)
	}
	return &models.Schedule{
		ID:             record.ID,
		OrganizationID: record.OrganizationID,
		Start:          record.StartDate,
		End:            record.EndDate,
		Comment:        record.Comment,
		Revision:       record.Revision,
		Days:           record.Days,
	}, nil
}

// SaveSchedule writes the schedule if its Revision still matches the stored
// one, then bumps the revision. The returned totals are recomputed from the
// saved assignments.
func (s *gormStore) SaveSchedule(ctx context.Context, sched *models.Schedule) (models.Totals, error) {
	totals := scheduler.ComputeTotals(sched)
	expected := sched.Revision
	record := toRecord(sched, totals)
	record.Revision = expected + 1

	res := s.db.WithContext(ctx).
		Model(&database.ScheduleRecord{}).
		Where("id = ? AND organization_id = ? AND revision = ?", sched.ID, sched.OrganizationID, expected).
		Select("start_date", "end_date", "comment", "revision", "days", "assignments", "total_cost", "total_hours", "updated_at").
		Updates(&record)
	if res.Error != nil {
		return models.Totals{}, fmt.Errorf("failed to save schedule %s: %w", sched.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&database.ScheduleRecord{}).
			Where("id = ? AND organization_id = ?", sched.ID, sched.OrganizationID).
			Count(&count).Error; err != nil {
			return models.Totals{}, fmt.Errorf("failed to check schedule %s: %w", sched.ID, err)
		}
		if count == 0 {
			return models.Totals{}, fmt.Errorf("schedule %s: %w", sched.ID, ErrNotFound)
		}
		return models.Totals{}, fmt.Errorf("schedule %s at revision %d: %w", sched.ID, expected, ErrStaleRevision)
	}

	sched.Revision = record.Revision
	return totals, nil
}

func toStaff(r database.StaffRecord) models.Staff {
	return models.Staff{
		ID:               r.ID,
		Name:             r.Name,
		Role:             r.Role,
		HourlyWage:       r.HourlyWage,
		PerformanceScore: r.PerformanceScore,
		Stations:         r.Stations,
		Availability:     r.Availability,
	}
}

func toRecord(s *models.Schedule, totals models.Totals) database.ScheduleRecord {
	return database.ScheduleRecord{
		ID:             s.ID,
		OrganizationID: s.OrganizationID,
		StartDate:      s.Start,
		EndDate:        s.End,
		Comment:        s.Comment,
		Revision:       s.Revision,
		Days:           s.Days,
		Assignments:    Snapshot(s),
		TotalCost:      totals.TotalLaborCost,
		TotalHours:     totals.TotalHours,
	}
}
