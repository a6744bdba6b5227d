package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamvidya/vidya-dropout/internal/domain/attendance"
	"github.com/teamvidya/vidya-dropout/internal/domain/risk"
	"github.com/teamvidya/vidya-dropout/internal/domain/shared"
	"github.com/teamvidya/vidya-dropout/internal/domain/student"
)

func intPtr(v int) *int { return &v }

func sampleRoster() []StudentImportRow {
	return []StudentImportRow{
		{RollNumber: 1, FullName: "Asha Verma", Class: 9, AverageScore: intPtr(82), ExamAttempts: intPtr(1), FeeStatus: "paid"},
		{RollNumber: 2, FullName: "Ravi Kumar", Class: 9, AverageScore: intPtr(41), ExamAttempts: intPtr(4), FeeStatus: "overdue"},
		{RollNumber: 3, FullName: "Meena Iyer", Class: 10, AverageScore: intPtr(58), ExamAttempts: intPtr(2), FeeStatus: "due"},
		{RollNumber: 4, FullName: "Kiran Das", Class: 10},
	}
}

func sampleLedger() []AttendanceImportRow {
	day := func(d int) time.Time { return time.Date(2025, 7, d, 0, 0, 0, 0, time.UTC) }
	return []AttendanceImportRow{
		{RollNumber: 1, Date: day(1), Status: attendance.StatusPresent},
		{RollNumber: 1, Date: day(2), Status: attendance.StatusPresent},
		{RollNumber: 2, Date: day(1), Status: attendance.StatusAbsent},
		{RollNumber: 2, Date: day(2), Status: attendance.StatusPresent},
		{RollNumber: 99, Date: day(1), Status: attendance.StatusPresent},
	}
}

func newImportFixture() (*ImportDatasetHandler, *memStudentRepo, *memAttendanceRepo, *memModelStore, *capturingPublisher) {
	students := &memStudentRepo{}
	ledger := &memAttendanceRepo{}
	store := &memModelStore{}
	publisher := &capturingPublisher{}
	h := NewImportDatasetHandler(students, ledger, risk.NewClassifier(), store, publisher, nil, stubGate{ml: true, notify: true})
	return h, students, ledger, store, publisher
}

func TestImportDataset(t *testing.T) {
	h, students, ledger, store, publisher := newImportFixture()

	result, err := h.Handle(context.Background(), ImportDatasetCommand{
		Students:   sampleRoster(),
		Attendance: sampleLedger(),
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.StudentsImported)
	assert.Equal(t, 4, result.AttendanceRecords, "the row for an unknown roll is dropped")
	assert.Equal(t, []int{99}, result.UnknownRolls)
	assert.Len(t, ledger.records, 4)

	assert.Equal(t, 4, result.ModelTrainedOn)
	assert.False(t, result.ModelTrainedAt.IsZero())
	require.NotNil(t, store.model)

	require.Len(t, students.riskBatches, 1)
	assert.Len(t, students.riskBatches[0], 4)
	assert.Len(t, publisher.ofType(shared.EventModelTrained), 1)
	assert.Len(t, publisher.ofType(shared.EventProfilesRecomputed), 1)
}

func TestImportDatasetKeepsStudentIDsOnReimport(t *testing.T) {
	h, students, _, _, _ := newImportFixture()

	_, err := h.Handle(context.Background(), ImportDatasetCommand{Students: sampleRoster()})
	require.NoError(t, err)

	original, err := students.GetByRollNumber(context.Background(), 1)
	require.NoError(t, err)
	originalID := original.ID

	// A second import of the same roster must not mint new identities;
	// the ledger references students by internal ID.
	_, err = h.Handle(context.Background(), ImportDatasetCommand{Students: sampleRoster()})
	require.NoError(t, err)

	reimported, err := students.GetByRollNumber(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, originalID, reimported.ID)
}

func TestImportDatasetAppliesDefaultsForSparseRows(t *testing.T) {
	h, students, _, _, _ := newImportFixture()

	_, err := h.Handle(context.Background(), ImportDatasetCommand{Students: sampleRoster()})
	require.NoError(t, err)

	batch := students.riskBatches[0]
	var sparse *student.RiskUpdate
	kiran, err := students.GetByRollNumber(context.Background(), 4)
	require.NoError(t, err)
	for i := range batch {
		if batch[i].StudentID == kiran.ID {
			sparse = &batch[i]
		}
	}
	require.NotNil(t, sparse)

	assert.Equal(t, student.DefaultAverageScore, sparse.Metrics.AverageScore)
	assert.Equal(t, student.DefaultExamAttempts, sparse.Metrics.ExamAttempts)
	assert.Equal(t, student.DefaultFeeStatus, sparse.Metrics.FeeStatus)
}

func TestImportDatasetMergesLedgerAttendance(t *testing.T) {
	h, students, _, _, _ := newImportFixture()

	result, err := h.Handle(context.Background(), ImportDatasetCommand{
		Students:   sampleRoster(),
		Attendance: sampleLedger(),
	})
	require.NoError(t, err)
	require.Equal(t, []int{99}, result.UnknownRolls)

	asha, err := students.GetByRollNumber(context.Background(), 1)
	require.NoError(t, err)
	ravi, err := students.GetByRollNumber(context.Background(), 2)
	require.NoError(t, err)

	for _, upd := range students.riskBatches[0] {
		switch upd.StudentID {
		case asha.ID:
			assert.Equal(t, student.Percent(100), upd.Metrics.AttendancePct)
		case ravi.ID:
			assert.Equal(t, student.Percent(50), upd.Metrics.AttendancePct)
		}
	}
}

func TestImportDatasetChunksLedgerWrites(t *testing.T) {
	h, _, ledger, _, _ := newImportFixture()

	rows := make([]AttendanceImportRow, 0, ImportChunkSize+1)
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < ImportChunkSize+1; i++ {
		rows = append(rows, AttendanceImportRow{
			RollNumber: 1,
			Date:       start.AddDate(0, 0, i),
			Status:     attendance.StatusPresent,
		})
	}

	_, err := h.Handle(context.Background(), ImportDatasetCommand{
		Students:   sampleRoster(),
		Attendance: rows,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, ledger.batches)
}

func TestImportDatasetResetLedger(t *testing.T) {
	h, _, ledger, _, _ := newImportFixture()

	_, err := h.Handle(context.Background(), ImportDatasetCommand{
		Students:    sampleRoster(),
		ResetLedger: true,
	})
	require.NoError(t, err)
	assert.True(t, ledger.wiped)
}

func TestImportDatasetSkipsTrainingWhenDisabled(t *testing.T) {
	students := &memStudentRepo{}
	store := &memModelStore{}
	h := NewImportDatasetHandler(students, &memAttendanceRepo{}, risk.NewClassifier(), store, nil, nil, stubGate{ml: false, notify: true})

	result, err := h.Handle(context.Background(), ImportDatasetCommand{Students: sampleRoster()})
	require.NoError(t, err)

	assert.Zero(t, result.ModelTrainedOn)
	assert.True(t, result.ModelTrainedAt.IsZero())
	assert.Nil(t, store.model)
	require.Len(t, students.riskBatches, 1, "rule-based scoring still runs")
}

func TestImportDatasetValidation(t *testing.T) {
	h, _, _, _, _ := newImportFixture()

	_, err := h.Handle(context.Background(), ImportDatasetCommand{})
	assert.ErrorContains(t, err, "no student rows")

	dup := []StudentImportRow{
		{RollNumber: 7, FullName: "A", Class: 9},
		{RollNumber: 7, FullName: "B", Class: 9},
	}
	_, err = h.Handle(context.Background(), ImportDatasetCommand{Students: dup})
	assert.ErrorContains(t, err, "duplicate roll number")
}
