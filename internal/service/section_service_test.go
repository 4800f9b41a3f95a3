package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edusuite/siga-api/internal/models"
	appErrors "github.com/edusuite/siga-api/pkg/errors"
)

type mockSectionRepo struct {
	sections map[string]models.ClassSection
	codes    map[string]bool
	parts    *models.SectionCodeParts
	created  []models.ClassSection
	updated  []models.ClassSection
}

func (m *mockSectionRepo) List(ctx context.Context, filter models.SectionFilter) ([]models.ClassSection, int, error) {
	out := make([]models.ClassSection, 0, len(m.sections))
	for _, s := range m.sections {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockSectionRepo) FindByID(ctx context.Context, id string) (*models.ClassSection, error) {
	if s, ok := m.sections[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSectionRepo) ExistsByCode(ctx context.Context, code, excludeID string) (bool, error) {
	return m.codes[code], nil
}

func (m *mockSectionRepo) CodeParts(ctx context.Context, roomID, courseID, gradeLevelID, shiftID string) (*models.SectionCodeParts, error) {
	if m.parts == nil {
		return nil, sql.ErrNoRows
	}
	return m.parts, nil
}

func (m *mockSectionRepo) Create(ctx context.Context, section *models.ClassSection) error {
	section.ID = "sec-new"
	m.created = append(m.created, *section)
	return nil
}

func (m *mockSectionRepo) Update(ctx context.Context, section *models.ClassSection) error {
	m.updated = append(m.updated, *section)
	return nil
}

type mockRoomReader struct {
	rooms map[string]models.Room
}

func (m *mockRoomReader) FindByID(ctx context.Context, id string) (*models.Room, error) {
	if r, ok := m.rooms[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

const (
	roomUUID       = "00000000-0000-0000-0000-00000000000a"
	courseUUID     = "00000000-0000-0000-0000-00000000000b"
	gradeLevelUUID = "00000000-0000-0000-0000-00000000000c"
	shiftUUID      = "00000000-0000-0000-0000-00000000000d"
)

func newSectionService(repo *mockSectionRepo, rooms *mockRoomReader) *SectionService {
	guard := &stubTermGuard{term: &models.Term{
		ID:        "term-1",
		Status:    models.TermStatusActive,
		StartDate: time.Date(2026, time.February, 2, 0, 0, 0, 0, time.UTC),
	}}
	return NewSectionService(repo, rooms, guard, NewAuditService(nil, nil), nil, nil)
}

func createSectionRequest() CreateSectionRequest {
	return CreateSectionRequest{
		RoomID:       roomUUID,
		CourseID:     courseUUID,
		GradeLevelID: gradeLevelUUID,
		ShiftID:      shiftUUID,
		Capacity:     30,
	}
}

func TestCreateSectionDerivesCode(t *testing.T) {
	repo := &mockSectionRepo{
		sections: map[string]models.ClassSection{},
		codes:    map[string]bool{},
		parts:    &models.SectionCodeParts{CourseCode: "INF", GradeLevel: 10, ShiftCode: "M", RoomNumber: 3},
	}
	rooms := &mockRoomReader{rooms: map[string]models.Room{roomUUID: {ID: roomUUID, Number: 3, Capacity: 40}}}
	svc := newSectionService(repo, rooms)

	section, err := svc.Create(context.Background(), createSectionRequest(), "admin")
	require.NoError(t, err)
	assert.Equal(t, "INF10M3-2026", section.Code)
	assert.Equal(t, models.SectionStatusActive, section.Status)
	assert.Equal(t, "term-1", section.TermID)
	require.Len(t, repo.created, 1)
}

func TestCreateSectionRejectsCapacityAboveRoom(t *testing.T) {
	repo := &mockSectionRepo{
		sections: map[string]models.ClassSection{},
		codes:    map[string]bool{},
		parts:    &models.SectionCodeParts{CourseCode: "INF", GradeLevel: 10, ShiftCode: "M", RoomNumber: 3},
	}
	rooms := &mockRoomReader{rooms: map[string]models.Room{roomUUID: {ID: roomUUID, Number: 3, Capacity: 25}}}
	svc := newSectionService(repo, rooms)

	_, err := svc.Create(context.Background(), createSectionRequest(), "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.created)
}

func TestCreateSectionRejectsDuplicateCode(t *testing.T) {
	repo := &mockSectionRepo{
		sections: map[string]models.ClassSection{},
		codes:    map[string]bool{"INF10M3-2026": true},
		parts:    &models.SectionCodeParts{CourseCode: "INF", GradeLevel: 10, ShiftCode: "M", RoomNumber: 3},
	}
	rooms := &mockRoomReader{rooms: map[string]models.Room{roomUUID: {ID: roomUUID, Number: 3, Capacity: 40}}}
	svc := newSectionService(repo, rooms)

	_, err := svc.Create(context.Background(), createSectionRequest(), "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCreateSectionUnknownCatalogParts(t *testing.T) {
	repo := &mockSectionRepo{sections: map[string]models.ClassSection{}, codes: map[string]bool{}}
	rooms := &mockRoomReader{rooms: map[string]models.Room{roomUUID: {ID: roomUUID, Capacity: 40}}}
	svc := newSectionService(repo, rooms)

	_, err := svc.Create(context.Background(), createSectionRequest(), "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUpdateSectionRecomputesCodeOnPartChange(t *testing.T) {
	repo := &mockSectionRepo{
		sections: map[string]models.ClassSection{
			"sec-1": {
				ID: "sec-1", Code: "INF10M3-2026",
				RoomID: roomUUID, CourseID: courseUUID, GradeLevelID: gradeLevelUUID, ShiftID: shiftUUID,
				Capacity: 30, Status: models.SectionStatusActive, TermID: "term-1",
			},
		},
		codes: map[string]bool{},
		parts: &models.SectionCodeParts{CourseCode: "INF", GradeLevel: 10, ShiftCode: "T", RoomNumber: 3},
	}
	rooms := &mockRoomReader{rooms: map[string]models.Room{roomUUID: {ID: roomUUID, Number: 3, Capacity: 40}}}
	svc := newSectionService(repo, rooms)

	newShift := "00000000-0000-0000-0000-00000000000e"
	section, err := svc.Update(context.Background(), "sec-1", UpdateSectionRequest{ShiftID: &newShift}, "admin")
	require.NoError(t, err)
	assert.Equal(t, "INF10T3-2026", section.Code)
	require.Len(t, repo.updated, 1)
}

func TestUpdateSectionCapacityOnlyKeepsCode(t *testing.T) {
	repo := &mockSectionRepo{
		sections: map[string]models.ClassSection{
			"sec-1": {
				ID: "sec-1", Code: "INF10M3-2026",
				RoomID: roomUUID, CourseID: courseUUID, GradeLevelID: gradeLevelUUID, ShiftID: shiftUUID,
				Capacity: 30, Status: models.SectionStatusActive, TermID: "term-1",
			},
		},
		codes: map[string]bool{},
	}
	rooms := &mockRoomReader{rooms: map[string]models.Room{roomUUID: {ID: roomUUID, Number: 3, Capacity: 40}}}
	svc := newSectionService(repo, rooms)

	capacity := 35
	section, err := svc.Update(context.Background(), "sec-1", UpdateSectionRequest{Capacity: &capacity}, "admin")
	require.NoError(t, err)
	assert.Equal(t, "INF10M3-2026", section.Code)
	assert.Equal(t, 35, section.Capacity)
}

func TestUpdateConcludedSectionRejected(t *testing.T) {
	repo := &mockSectionRepo{
		sections: map[string]models.ClassSection{
			"sec-1": {ID: "sec-1", RoomID: roomUUID, Capacity: 30, Status: models.SectionStatusConcluded, TermID: "term-1"},
		},
		codes: map[string]bool{},
	}
	rooms := &mockRoomReader{rooms: map[string]models.Room{roomUUID: {ID: roomUUID, Capacity: 40}}}
	svc := newSectionService(repo, rooms)

	capacity := 10
	_, err := svc.Update(context.Background(), "sec-1", UpdateSectionRequest{Capacity: &capacity}, "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}
