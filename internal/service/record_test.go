package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"portalapi/internal/attachment"
	"portalapi/internal/logging"
	"portalapi/internal/model"
	"portalapi/internal/repository"
	repoMocks "portalapi/internal/repository/mocks"
	"portalapi/internal/storage"
	storeMocks "portalapi/internal/storage/mocks"
	"portalapi/internal/store"
)

func fileUpload(name, body string) *attachment.Upload {
	return &attachment.Upload{Filename: name, ContentType: "image/png", Size: int64(len(body)), Reader: strings.NewReader(body)}
}

func assignmentFields() model.Record {
	return model.Record{"title": "HW1", "course": "CS1", "deadline": "2024-02-01"}
}

func TestRecordService_Create(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		fields     model.Record
		upload     *attachment.Upload
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockRepository)
		wantErr    error
		wantErrMsg string
	}{
		{
			name:   "happy path without file",
			fields: model.Record{"title": "HW1", "course": "CS1", "deadline": "2024-02-01", "image": "forged.png"},
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockRepository) {
				mRepo.On("Create", ctx, model.Assignments, mock.MatchedBy(func(f model.Record) bool {
					_, hasImage := f["image"]
					return !hasImage && f["title"] == "HW1"
				})).Return(model.Record{"id": int64(1), "title": "HW1", "image": nil}, nil)
			},
		},
		{
			name:   "happy path with file",
			fields: assignmentFields(),
			upload: fileUpload("scan.png", "png"),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockRepository) {
				mStore.On("Put", ctx, mock.MatchedBy(func(key string) bool {
					return strings.HasSuffix(key, ".png")
				}), mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil)
				mRepo.On("Create", ctx, model.Assignments, mock.MatchedBy(func(f model.Record) bool {
					name, _ := f["image"].(string)
					return strings.HasSuffix(name, ".png")
				})).Return(model.Record{"id": int64(1), "image": "1.png"}, nil)
			},
		},
		{
			name:       "validation error stores nothing",
			fields:     model.Record{"title": "HW1"},
			upload:     fileUpload("scan.png", "png"),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockRepository) {},
			wantErr:    model.ErrValidation,
		},
		{
			name:   "storage error",
			fields: assignmentFields(),
			upload: fileUpload("scan.png", "png"),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockRepository) {
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("storage fail"))
			},
			wantErrMsg: "store attachment: storage fail",
		},
		{
			name:   "repository error removes stored file",
			fields: assignmentFields(),
			upload: fileUpload("scan.png", "png"),
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockRepository) {
				mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil)
				mRepo.On("Create", ctx, model.Assignments, mock.Anything).Return(nil, errors.New("db fail"))
				mStore.On("Delete", ctx, mock.MatchedBy(func(key string) bool {
					return strings.HasSuffix(key, ".png")
				})).Return(nil)
			},
			wantErrMsg: "db fail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockRepository)
			svc := NewRecordService(mRepo, attachment.NewManager(mStore, logging.Discard()), logging.Discard())

			tt.setupMocks(mStore, mRepo)

			rec, err := svc.Create(ctx, model.Assignments, tt.fields, tt.upload)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else if tt.wantErrMsg != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, rec)
			}

			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

type fixture struct {
	svc  RecordService
	repo repository.Repository
	dir  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	return newFixtureOn(t, store.NewMemoryStore())
}

func newFixtureOn(t *testing.T, st store.Store) fixture {
	t.Helper()
	dir := t.TempDir()
	s, err := storage.NewLocal(dir, "/uploads")
	require.NoError(t, err)
	repo := repository.NewDocumentRepository(st)
	return fixture{
		svc:  NewRecordService(repo, attachment.NewManager(s, logging.Discard()), logging.Discard()),
		repo: repo,
		dir:  dir,
	}
}

func (f fixture) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func idOf(t *testing.T, rec model.Record) int64 {
	t.Helper()
	id, ok := rec.ID()
	require.True(t, ok)
	return id
}

func TestRecordService_AttachTwiceLeavesOneFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, model.Assignments, assignmentFields(), nil)
	require.NoError(t, err)
	id := idOf(t, a)

	first, err := f.svc.Attach(ctx, model.Assignments, id, fileUpload("one.png", "1"))
	require.NoError(t, err)
	second, err := f.svc.Attach(ctx, model.Assignments, id, fileUpload("two.png", "2"))
	require.NoError(t, err)

	assert.NotEqual(t, first["image"], second["image"])
	assert.Equal(t, []string{second["image"].(string)}, f.files(t))
}

func TestRecordService_AttachMissingRecordStoresNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Attach(context.Background(), model.Assignments, 42, fileUpload("one.png", "1"))
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Empty(t, f.files(t))
}

func TestRecordService_AttachRequiresFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.svc.Create(ctx, model.Assignments, assignmentFields(), nil)
	require.NoError(t, err)

	_, err = f.svc.Attach(ctx, model.Assignments, idOf(t, a), nil)
	assert.ErrorIs(t, err, ErrFileRequired)

	_, err = f.svc.Attach(ctx, model.Assignments, idOf(t, a), &attachment.Upload{Filename: "x.png", Reader: strings.NewReader("")})
	assert.ErrorIs(t, err, ErrFileRequired)

	_, err = f.svc.Attach(ctx, model.Exams, 1, fileUpload("x.png", "1"))
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestRecordService_UserPhotoAndProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.repo.Create(ctx, model.Users, model.Record{"username": "alice", "password": "$2a$10$hash"})
	require.NoError(t, err)
	id := idOf(t, user)

	withPhoto, err := f.svc.Attach(ctx, model.Users, id, fileUpload("me.jpg", "jpeg"))
	require.NoError(t, err)
	assert.NotEmpty(t, withPhoto["photoPath"])
	assert.NotContains(t, withPhoto, "password")

	updated, err := f.svc.Update(ctx, model.Users, id, model.Record{"firstName": "Alice", "email": "", "username": "eve"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Alice", updated["firstName"])
	assert.Equal(t, "alice", updated["username"])
	assert.NotContains(t, updated, "email")
	assert.NotContains(t, updated, "password")

	got, err := f.svc.Get(ctx, model.Users, id)
	require.NoError(t, err)
	assert.NotContains(t, got, "password")
}

func TestRecordService_UpdateWithUploadReplacesFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, model.Assignments, assignmentFields(), fileUpload("v1.png", "1"))
	require.NoError(t, err)
	id := idOf(t, a)

	updated, err := f.svc.Update(ctx, model.Assignments, id, model.Record{"title": "HW1 (revised)"}, fileUpload("v2.png", "2"))
	require.NoError(t, err)
	assert.Equal(t, "HW1 (revised)", updated["title"])
	assert.NotEqual(t, a["image"], updated["image"])
	assert.Equal(t, []string{updated["image"].(string)}, f.files(t))
}

func TestRecordService_Detach(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, model.Assignments, assignmentFields(), nil)
	require.NoError(t, err)
	id := idOf(t, a)

	_, err = f.svc.Detach(ctx, model.Assignments, id)
	assert.ErrorIs(t, err, ErrNoAttachment)
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.svc.Attach(ctx, model.Assignments, id, fileUpload("one.png", "1"))
	require.NoError(t, err)

	cleared, err := f.svc.Detach(ctx, model.Assignments, id)
	require.NoError(t, err)
	assert.Nil(t, cleared["image"])
	assert.Empty(t, f.files(t))

	_, err = f.svc.Detach(ctx, model.Assignments, id+1)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRecordService_DeleteRemovesAttachment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, model.Assignments, assignmentFields(), fileUpload("one.png", "1"))
	require.NoError(t, err)
	require.Len(t, f.files(t), 1)

	require.NoError(t, f.svc.Delete(ctx, model.Assignments, idOf(t, a)))
	assert.Empty(t, f.files(t))

	err = f.svc.Delete(ctx, model.Assignments, idOf(t, a))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestRecordService_DeleteExamCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	exam, err := f.svc.Create(ctx, model.Exams, model.Record{"title": "Midterm", "course": "CS1", "date": "2024-01-01", "time": "09:00"}, nil)
	require.NoError(t, err)
	other, err := f.svc.Create(ctx, model.Exams, model.Record{"title": "Final", "course": "CS1", "date": "2024-06-01", "time": "09:00"}, nil)
	require.NoError(t, err)
	examID, otherID := idOf(t, exam), idOf(t, other)

	_, err = f.svc.Create(ctx, model.Questions, model.Record{"exam_id": examID, "question": "Q1"}, nil)
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, model.Questions, model.Record{"exam_id": otherID, "question": "Q2"}, nil)
	require.NoError(t, err)

	qs, err := f.svc.QuestionsForExam(ctx, examID)
	require.NoError(t, err)
	assert.Len(t, qs, 1)

	require.NoError(t, f.svc.Delete(ctx, model.Exams, examID))

	qs, err = f.svc.QuestionsForExam(ctx, examID)
	require.NoError(t, err)
	assert.Empty(t, qs)

	qs, err = f.svc.QuestionsForExam(ctx, otherID)
	require.NoError(t, err)
	assert.Len(t, qs, 1)
}

func TestRecordService_EventsOnMatchesLiteralDate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, d := range []string{"2024-01-01", "2024-01-02", "2024-1-1", "2024-01-01"} {
		_, err := f.svc.Create(ctx, model.Calendar, model.Record{"date": d, "title": "t", "user": "u"}, nil)
		require.NoError(t, err)
	}

	events, err := f.svc.EventsOn(ctx, "2024-01-01")
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, "2024-01-01", e["date"])
		assert.Equal(t, "", e["description"])
	}
}

func TestRecordService_DeleteMissingStillSaves(t *testing.T) {
	mRepo := new(repoMocks.MockRepository)
	mRepo.On("Delete", mock.Anything, model.Courses, int64(7)).Return(false, nil)
	svc := NewRecordService(mRepo, attachment.NewManager(new(storeMocks.MockStorage), logging.Discard()), logging.Discard())

	err := svc.Delete(context.Background(), model.Courses, 7)
	assert.ErrorIs(t, err, model.ErrNotFound)
	mRepo.AssertExpectations(t)
}

// failingStore is a memory store whose Save can be switched to fail.
type failingStore struct {
	*store.MemoryStore
	fail bool
}

func (s *failingStore) Save(ctx context.Context, doc model.Document) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.MemoryStore.Save(ctx, doc)
}

func (f fixture) readFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	require.NoError(t, err)
	return string(data)
}

func TestRecordService_FailedSaveKeepsReferencedFile(t *testing.T) {
	st := &failingStore{MemoryStore: store.NewMemoryStore()}
	f := newFixtureOn(t, st)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, model.Assignments, assignmentFields(), fileUpload("a.png", "first"))
	require.NoError(t, err)
	id := idOf(t, a)
	original := a["image"].(string)

	st.fail = true

	t.Run("attach", func(t *testing.T) {
		_, err := f.svc.Attach(ctx, model.Assignments, id, fileUpload("b.png", "second"))
		assert.ErrorContains(t, err, "disk full")

		got, err := f.svc.Get(ctx, model.Assignments, id)
		require.NoError(t, err)
		assert.Equal(t, original, got["image"])
		assert.Equal(t, []string{original}, f.files(t))
		assert.Equal(t, "first", f.readFile(t, original))
	})

	t.Run("update with upload", func(t *testing.T) {
		_, err := f.svc.Update(ctx, model.Assignments, id, model.Record{"title": "HW2"}, fileUpload("c.png", "third"))
		assert.ErrorContains(t, err, "disk full")

		got, err := f.svc.Get(ctx, model.Assignments, id)
		require.NoError(t, err)
		assert.Equal(t, "HW1", got["title"])
		assert.Equal(t, original, got["image"])
		assert.Equal(t, []string{original}, f.files(t))
	})

	t.Run("detach", func(t *testing.T) {
		_, err := f.svc.Detach(ctx, model.Assignments, id)
		assert.ErrorContains(t, err, "disk full")

		got, err := f.svc.Get(ctx, model.Assignments, id)
		require.NoError(t, err)
		assert.Equal(t, original, got["image"])
		assert.Equal(t, "first", f.readFile(t, original))
	})

	st.fail = false

	cleared, err := f.svc.Detach(ctx, model.Assignments, id)
	require.NoError(t, err)
	assert.Nil(t, cleared["image"])
	assert.Empty(t, f.files(t))
}

func TestRecordService_EmptyOptionalUploadIsIgnored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	empty := func() *attachment.Upload {
		return &attachment.Upload{Filename: "blank.png", ContentType: "image/png", Reader: strings.NewReader("")}
	}

	a, err := f.svc.Create(ctx, model.Assignments, assignmentFields(), empty())
	require.NoError(t, err)
	assert.Nil(t, a["image"])
	assert.Empty(t, f.files(t))

	id := idOf(t, a)
	withFile, err := f.svc.Attach(ctx, model.Assignments, id, fileUpload("a.png", "1"))
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, model.Assignments, id, model.Record{"title": "HW1 (revised)"}, empty())
	require.NoError(t, err)
	assert.Equal(t, "HW1 (revised)", updated["title"])
	assert.Equal(t, withFile["image"], updated["image"])
	assert.Len(t, f.files(t), 1)
}
