package service_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsend/quillsend-backend/internal/model"
	"github.com/quillsend/quillsend-backend/internal/queue"
	"github.com/quillsend/quillsend-backend/internal/service"
	"github.com/quillsend/quillsend-backend/internal/store"
)

type memCampaigns struct {
	byID map[string]*model.Campaign
}

func newMemCampaigns(campaigns ...*model.Campaign) *memCampaigns {
	m := &memCampaigns{byID: make(map[string]*model.Campaign)}
	for _, c := range campaigns {
		cp := *c
		m.byID[c.ID] = &cp
	}
	return m
}

func (m *memCampaigns) Create(_ context.Context, c *model.Campaign) error {
	cp := *c
	m.byID[c.ID] = &cp
	return nil
}

func (m *memCampaigns) Get(_ context.Context, id string) (*model.Campaign, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCampaigns) ListByUser(_ context.Context, userID string) ([]model.Campaign, error) {
	var out []model.Campaign
	for _, c := range m.byID {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memCampaigns) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memCampaigns) SetStatus(_ context.Context, id string, status model.CampaignStatus, reason string) error {
	c, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Status = status
	c.StatusReason = reason
	return nil
}

func (m *memCampaigns) MarkStarted(_ context.Context, id string, total int, at time.Time) error {
	c, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Status = model.StatusRunning
	c.StatusReason = ""
	c.Stats = model.CampaignStats{Total: total, Pending: total}
	c.Progress = model.Progress{}
	c.StartedAt = &at
	return nil
}

func (m *memCampaigns) FindDueScheduled(_ context.Context, now time.Time) ([]model.Campaign, error) {
	var out []model.Campaign
	for _, c := range m.byID {
		if c.Status == model.StatusScheduled && c.ScheduleTime != nil && !c.ScheduleTime.After(now) {
			out = append(out, *c)
		}
	}
	return out, nil
}

type memRecipients struct {
	list []model.Recipient
}

func (m *memRecipients) ListByUser(_ context.Context, userID string) ([]model.Recipient, error) {
	var out []model.Recipient
	for _, r := range m.list {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type memLogs struct {
	entries []model.DeliveryLogEntry
	deleted []string
}

func (m *memLogs) ListByCampaign(_ context.Context, campaignID string, limit int64) ([]model.DeliveryLogEntry, error) {
	var out []model.DeliveryLogEntry
	for _, e := range m.entries {
		if e.CampaignID == campaignID {
			out = append(out, e)
		}
		if int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (m *memLogs) DeleteByCampaign(_ context.Context, campaignID string) error {
	m.deleted = append(m.deleted, campaignID)
	return nil
}

type memPublisher struct {
	jobs []queue.DispatchJob
	err  error
}

func (m *memPublisher) Publish(job queue.DispatchJob) error {
	if m.err != nil {
		return m.err
	}
	m.jobs = append(m.jobs, job)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func validInput() service.CreateCampaignInput {
	return service.CreateCampaignInput{
		Name:         "Spring launch",
		Subject:      "Hello {{name}}",
		Body:         "<p>Hi {{name}}</p>",
		TemplateType: model.TemplateHTML,
		RateLimit:    100,
		DailyQuota:   500,
	}
}

func TestCampaignService_Create(t *testing.T) {
	t.Parallel()

	t.Run("draft by default", func(t *testing.T) {
		t.Parallel()
		campaigns := newMemCampaigns()
		svc := service.NewCampaignService(campaigns, &memRecipients{}, &memLogs{}, &memPublisher{}, discardLogger())

		created, err := svc.Create(context.Background(), "user-1", validInput())
		require.NoError(t, err)
		assert.Equal(t, model.StatusDraft, created.Status)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "user-1", created.UserID)

		stored, err := campaigns.Get(context.Background(), created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Name, stored.Name)
	})

	t.Run("scheduled when schedule time given", func(t *testing.T) {
		t.Parallel()
		svc := service.NewCampaignService(newMemCampaigns(), &memRecipients{}, &memLogs{}, &memPublisher{}, discardLogger())

		in := validInput()
		at := time.Now().Add(time.Hour)
		in.ScheduleTime = &at

		created, err := svc.Create(context.Background(), "user-1", in)
		require.NoError(t, err)
		assert.Equal(t, model.StatusScheduled, created.Status)
	})

	t.Run("rejects invalid rate limit", func(t *testing.T) {
		t.Parallel()
		svc := service.NewCampaignService(newMemCampaigns(), &memRecipients{}, &memLogs{}, &memPublisher{}, discardLogger())

		in := validInput()
		in.RateLimit = 0

		_, err := svc.Create(context.Background(), "user-1", in)
		require.ErrorIs(t, err, model.ErrInvalidCampaign)
	})
}

func TestCampaignService_Details(t *testing.T) {
	t.Parallel()

	campaign := &model.Campaign{ID: "c1", UserID: "user-1", Status: model.StatusDraft}
	logs := &memLogs{entries: []model.DeliveryLogEntry{
		{ID: "l1", CampaignID: "c1", Outcome: model.OutcomeSent},
		{ID: "l2", CampaignID: "other", Outcome: model.OutcomeSent},
	}}
	svc := service.NewCampaignService(newMemCampaigns(campaign), &memRecipients{}, logs, &memPublisher{}, discardLogger())

	details, err := svc.Details(context.Background(), "user-1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", details.Campaign.ID)
	require.Len(t, details.Logs, 1)
	assert.Equal(t, "l1", details.Logs[0].ID)

	_, err = svc.Details(context.Background(), "user-2", "c1")
	assert.ErrorIs(t, err, service.ErrNotFound, "foreign user must not see the campaign")
}

func TestCampaignService_Delete(t *testing.T) {
	t.Parallel()

	campaign := &model.Campaign{ID: "c1", UserID: "user-1", Status: model.StatusDraft}
	campaigns := newMemCampaigns(campaign)
	logs := &memLogs{}
	svc := service.NewCampaignService(campaigns, &memRecipients{}, logs, &memPublisher{}, discardLogger())

	require.NoError(t, svc.Delete(context.Background(), "user-1", "c1"))
	_, err := campaigns.Get(context.Background(), "c1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, []string{"c1"}, logs.deleted, "delivery log entries go with the campaign")
}

func TestCampaignService_Duplicate(t *testing.T) {
	t.Parallel()

	at := time.Now()
	original := &model.Campaign{
		ID:           "c1",
		UserID:       "user-1",
		Name:         "Spring launch",
		Subject:      "s",
		Body:         "b",
		TemplateType: model.TemplateHTML,
		RateLimit:    100,
		DailyQuota:   500,
		Status:       model.StatusCompleted,
		Stats:        model.CampaignStats{Total: 5, Sent: 5},
		Progress:     model.Progress{NextIndex: 5},
		StartedAt:    &at,
	}
	campaigns := newMemCampaigns(original)
	svc := service.NewCampaignService(campaigns, &memRecipients{}, &memLogs{}, &memPublisher{}, discardLogger())

	clone, err := svc.Duplicate(context.Background(), "user-1", "c1")
	require.NoError(t, err)
	assert.NotEqual(t, original.ID, clone.ID)
	assert.Equal(t, "Spring launch (copy)", clone.Name)
	assert.Equal(t, model.StatusDraft, clone.Status)
	assert.Zero(t, clone.Stats, "clone starts with fresh stats")
	assert.Zero(t, clone.Progress)
	assert.Nil(t, clone.StartedAt)
}

func TestCampaignService_Start(t *testing.T) {
	t.Parallel()

	recipients := &memRecipients{list: []model.Recipient{
		{ID: "r1", UserID: "user-1", Email: "a@example.com"},
		{ID: "r2", UserID: "user-1", Email: "b@example.com"},
	}}

	t.Run("starts draft and publishes job", func(t *testing.T) {
		t.Parallel()
		campaigns := newMemCampaigns(&model.Campaign{ID: "c1", UserID: "user-1", Status: model.StatusDraft})
		jobs := &memPublisher{}
		svc := service.NewCampaignService(campaigns, recipients, &memLogs{}, jobs, discardLogger())

		require.NoError(t, svc.Start(context.Background(), "user-1", "c1"))

		stored, err := campaigns.Get(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusRunning, stored.Status)
		assert.Equal(t, 2, stored.Stats.Total)
		require.Len(t, jobs.jobs, 1)
		assert.Equal(t, queue.DispatchJob{CampaignID: "c1", UserID: "user-1"}, jobs.jobs[0])
	})

	t.Run("rejects already running", func(t *testing.T) {
		t.Parallel()
		campaigns := newMemCampaigns(&model.Campaign{ID: "c1", UserID: "user-1", Status: model.StatusRunning})
		svc := service.NewCampaignService(campaigns, recipients, &memLogs{}, &memPublisher{}, discardLogger())

		err := svc.Start(context.Background(), "user-1", "c1")
		assert.ErrorIs(t, err, service.ErrAlreadyRunning)
	})

	t.Run("rejects empty recipient list", func(t *testing.T) {
		t.Parallel()
		campaigns := newMemCampaigns(&model.Campaign{ID: "c1", UserID: "user-2", Status: model.StatusDraft})
		svc := service.NewCampaignService(campaigns, recipients, &memLogs{}, &memPublisher{}, discardLogger())

		err := svc.Start(context.Background(), "user-2", "c1")
		assert.ErrorIs(t, err, service.ErrNoRecipients)
	})

	t.Run("resuming a paused campaign keeps the checkpoint", func(t *testing.T) {
		t.Parallel()
		campaigns := newMemCampaigns(&model.Campaign{
			ID:           "c1",
			UserID:       "user-1",
			Status:       model.StatusPaused,
			StatusReason: "daily quota reached",
			Stats:        model.CampaignStats{Total: 2, Sent: 1, Pending: 1},
			Progress:     model.Progress{NextIndex: 1},
		})
		jobs := &memPublisher{}
		svc := service.NewCampaignService(campaigns, recipients, &memLogs{}, jobs, discardLogger())

		require.NoError(t, svc.Start(context.Background(), "user-1", "c1"))

		stored, err := campaigns.Get(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusRunning, stored.Status)
		assert.Empty(t, stored.StatusReason)
		assert.Equal(t, 1, stored.Progress.NextIndex, "checkpoint must survive the resume")
		assert.Equal(t, 1, stored.Stats.Sent)
		assert.Len(t, jobs.jobs, 1)
	})
}

func TestCampaignService_StartDue(t *testing.T) {
	t.Parallel()

	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	campaigns := newMemCampaigns(
		&model.Campaign{ID: "due", UserID: "user-1", Status: model.StatusScheduled, ScheduleTime: &past},
		&model.Campaign{ID: "later", UserID: "user-1", Status: model.StatusScheduled, ScheduleTime: &future},
		&model.Campaign{ID: "draft", UserID: "user-1", Status: model.StatusDraft},
		&model.Campaign{ID: "starved", UserID: "user-2", Status: model.StatusScheduled, ScheduleTime: &past},
	)
	recipients := &memRecipients{list: []model.Recipient{
		{ID: "r1", UserID: "user-1", Email: "a@example.com"},
	}}
	jobs := &memPublisher{}
	svc := service.NewCampaignService(campaigns, recipients, &memLogs{}, jobs, discardLogger())

	// user-2 has no recipients; that failure must not stop the sweep
	started, err := svc.StartDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, started)
	require.Len(t, jobs.jobs, 1)
	assert.Equal(t, "due", jobs.jobs[0].CampaignID)

	stored, err := campaigns.Get(context.Background(), "later")
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, stored.Status)
}
