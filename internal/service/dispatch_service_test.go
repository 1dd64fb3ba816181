package service_test

import (
	"context"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsend/quillsend-backend/internal/engine"
	"github.com/quillsend/quillsend-backend/internal/mail"
	"github.com/quillsend/quillsend-backend/internal/model"
	"github.com/quillsend/quillsend-backend/internal/queue"
	"github.com/quillsend/quillsend-backend/internal/secrets"
	"github.com/quillsend/quillsend-backend/internal/service"
	"github.com/quillsend/quillsend-backend/internal/store"
)

type memSMTP struct {
	byUser map[string]*model.SMTPSettings
}

func (m *memSMTP) Save(_ context.Context, settings *model.SMTPSettings) error {
	if m.byUser == nil {
		m.byUser = make(map[string]*model.SMTPSettings)
	}
	cp := *settings
	m.byUser[settings.UserID] = &cp
	return nil
}

func (m *memSMTP) Get(_ context.Context, userID string) (*model.SMTPSettings, error) {
	s, ok := m.byUser[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

type recordingRunner struct {
	jobs []engine.Job
	err  error
}

func (r *recordingRunner) Dispatch(_ context.Context, job engine.Job) error {
	r.jobs = append(r.jobs, job)
	return r.err
}

type nopSender struct{ cfg mail.Config }

func (nopSender) Send(context.Context, mail.Message) error { return nil }
func (nopSender) Verify(context.Context) error             { return nil }

func testCipher(t *testing.T) *secrets.Cipher {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	cipher, err := secrets.New(key)
	require.NoError(t, err)
	return cipher
}

func savedSettings(t *testing.T, cipher *secrets.Cipher, userID string) *memSMTP {
	t.Helper()
	encrypted, err := cipher.Encrypt("hunter2")
	require.NoError(t, err)
	smtp := &memSMTP{}
	require.NoError(t, smtp.Save(context.Background(), &model.SMTPSettings{
		UserID:   userID,
		Host:     "smtp.example.com",
		Port:     587,
		User:     "mailer@example.com",
		Password: encrypted,
	}))
	return smtp
}

func TestDispatchService_Run(t *testing.T) {
	t.Parallel()

	recipients := &memRecipients{list: []model.Recipient{
		{ID: "r1", UserID: "user-1", Email: "a@example.com"},
	}}

	newSvc := func(campaigns *memCampaigns, smtp *memSMTP, cipher *secrets.Cipher, runner *recordingRunner) *service.DispatchService {
		factory := func(cfg mail.Config) (mail.Sender, error) {
			return nopSender{cfg: cfg}, nil
		}
		return service.NewDispatchService(campaigns, recipients, smtp, cipher, factory, runner, discardLogger())
	}

	t.Run("runs a running campaign", func(t *testing.T) {
		t.Parallel()
		cipher := testCipher(t)
		campaigns := newMemCampaigns(&model.Campaign{ID: "c1", UserID: "user-1", Status: model.StatusRunning})
		runner := &recordingRunner{}
		svc := newSvc(campaigns, savedSettings(t, cipher, "user-1"), cipher, runner)

		require.NoError(t, svc.Run(context.Background(), queue.DispatchJob{CampaignID: "c1", UserID: "user-1"}))
		require.Len(t, runner.jobs, 1)
		job := runner.jobs[0]
		assert.Equal(t, "c1", job.Campaign.ID)
		assert.Len(t, job.Recipients, 1)
		assert.Equal(t, "mailer@example.com", job.From)

		sender, ok := job.Sender.(nopSender)
		require.True(t, ok)
		assert.Equal(t, "hunter2", sender.cfg.Password, "password decrypted for the transport")
	})

	t.Run("resumes interrupted campaign", func(t *testing.T) {
		t.Parallel()
		cipher := testCipher(t)
		campaigns := newMemCampaigns(&model.Campaign{
			ID:           "c1",
			UserID:       "user-1",
			Status:       model.StatusPaused,
			StatusReason: "dispatch interrupted",
		})
		runner := &recordingRunner{}
		svc := newSvc(campaigns, savedSettings(t, cipher, "user-1"), cipher, runner)

		require.NoError(t, svc.Run(context.Background(), queue.DispatchJob{CampaignID: "c1", UserID: "user-1"}))
		require.Len(t, runner.jobs, 1)
		assert.Equal(t, model.StatusRunning, runner.jobs[0].Campaign.Status)
	})

	t.Run("drops quota-paused campaign", func(t *testing.T) {
		t.Parallel()
		cipher := testCipher(t)
		campaigns := newMemCampaigns(&model.Campaign{
			ID:           "c1",
			UserID:       "user-1",
			Status:       model.StatusPaused,
			StatusReason: "daily quota reached",
		})
		runner := &recordingRunner{}
		svc := newSvc(campaigns, savedSettings(t, cipher, "user-1"), cipher, runner)

		require.NoError(t, svc.Run(context.Background(), queue.DispatchJob{CampaignID: "c1", UserID: "user-1"}))
		assert.Empty(t, runner.jobs, "quota pause waits for an explicit re-trigger")

		stored, err := campaigns.Get(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusPaused, stored.Status)
	})

	t.Run("drops job for missing campaign", func(t *testing.T) {
		t.Parallel()
		cipher := testCipher(t)
		runner := &recordingRunner{}
		svc := newSvc(newMemCampaigns(), savedSettings(t, cipher, "user-1"), cipher, runner)

		require.NoError(t, svc.Run(context.Background(), queue.DispatchJob{CampaignID: "gone", UserID: "user-1"}))
		assert.Empty(t, runner.jobs)
	})

	t.Run("missing smtp settings leaves status unchanged", func(t *testing.T) {
		t.Parallel()
		cipher := testCipher(t)
		campaigns := newMemCampaigns(&model.Campaign{ID: "c1", UserID: "user-1", Status: model.StatusRunning})
		runner := &recordingRunner{}
		svc := newSvc(campaigns, &memSMTP{}, cipher, runner)

		require.NoError(t, svc.Run(context.Background(), queue.DispatchJob{CampaignID: "c1", UserID: "user-1"}))
		assert.Empty(t, runner.jobs)

		stored, err := campaigns.Get(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusRunning, stored.Status)
	})

	t.Run("engine error propagates for redelivery", func(t *testing.T) {
		t.Parallel()
		cipher := testCipher(t)
		campaigns := newMemCampaigns(&model.Campaign{ID: "c1", UserID: "user-1", Status: model.StatusRunning})
		runner := &recordingRunner{err: engine.ErrInterrupted}
		svc := newSvc(campaigns, savedSettings(t, cipher, "user-1"), cipher, runner)

		err := svc.Run(context.Background(), queue.DispatchJob{CampaignID: "c1", UserID: "user-1"})
		assert.ErrorIs(t, err, engine.ErrInterrupted)
	})
}

func TestSMTPService(t *testing.T) {
	t.Parallel()

	t.Run("save encrypts and get masks", func(t *testing.T) {
		t.Parallel()
		cipher := testCipher(t)
		smtp := &memSMTP{}
		svc := service.NewSMTPService(smtp, cipher, service.NewSMTPTransport, discardLogger())

		require.NoError(t, svc.Save(context.Background(), "user-1", service.SMTPInput{
			Host:     "smtp.example.com",
			Port:     465,
			Secure:   true,
			User:     "mailer@example.com",
			Password: "hunter2",
		}))

		stored, err := smtp.Get(context.Background(), "user-1")
		require.NoError(t, err)
		assert.NotEqual(t, "hunter2", stored.Password, "password must be stored encrypted")
		plain, err := cipher.Decrypt(stored.Password)
		require.NoError(t, err)
		assert.Equal(t, "hunter2", plain)

		view, err := svc.Get(context.Background(), "user-1")
		require.NoError(t, err)
		require.NotNil(t, view)
		assert.Equal(t, "smtp.example.com", view.Host)
		assert.True(t, view.HasPassword)
	})

	t.Run("get returns nil when unset", func(t *testing.T) {
		t.Parallel()
		svc := service.NewSMTPService(&memSMTP{}, testCipher(t), service.NewSMTPTransport, discardLogger())

		view, err := svc.Get(context.Background(), "user-1")
		require.NoError(t, err)
		assert.Nil(t, view)
	})

	t.Run("save rejects invalid settings", func(t *testing.T) {
		t.Parallel()
		svc := service.NewSMTPService(&memSMTP{}, testCipher(t), service.NewSMTPTransport, discardLogger())

		err := svc.Save(context.Background(), "user-1", service.SMTPInput{Host: "", Port: 587})
		assert.ErrorIs(t, err, model.ErrInvalidSMTPSettings)
	})

	t.Run("test verifies with decrypted password", func(t *testing.T) {
		t.Parallel()
		cipher := testCipher(t)
		smtp := savedSettings(t, cipher, "user-1")

		var seen mail.Config
		factory := func(cfg mail.Config) (mail.Sender, error) {
			seen = cfg
			return nopSender{}, nil
		}
		svc := service.NewSMTPService(smtp, cipher, factory, discardLogger())

		require.NoError(t, svc.Test(context.Background(), "user-1"))
		assert.Equal(t, "hunter2", seen.Password)
	})

	t.Run("test without settings", func(t *testing.T) {
		t.Parallel()
		svc := service.NewSMTPService(&memSMTP{}, testCipher(t), service.NewSMTPTransport, discardLogger())

		err := svc.Test(context.Background(), "user-1")
		assert.ErrorIs(t, err, service.ErrNoTransportConfig)
	})
}

type memRecipientStore struct {
	memRecipients
	createErr error
}

func (m *memRecipientStore) Create(_ context.Context, r *model.Recipient) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.list = append(m.list, *r)
	return nil
}

func (m *memRecipientStore) CreateMany(_ context.Context, recipients []model.Recipient) error {
	m.list = append(m.list, recipients...)
	return nil
}

func (m *memRecipientStore) Delete(_ context.Context, userID, id string) error {
	for i, r := range m.list {
		if r.ID == id && r.UserID == userID {
			m.list = append(m.list[:i], m.list[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func TestRecipientService(t *testing.T) {
	t.Parallel()

	t.Run("add validates email", func(t *testing.T) {
		t.Parallel()
		svc := service.NewRecipientService(&memRecipientStore{}, discardLogger())

		_, err := svc.Add(context.Background(), "user-1", service.RecipientInput{})
		assert.ErrorIs(t, err, model.ErrInvalidRecipient)

		r, err := svc.Add(context.Background(), "user-1", service.RecipientInput{
			Email:        "a@example.com",
			CustomFields: map[string]string{"name": "Ada"},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, "Ada", r.CustomFields["name"])
	})

	t.Run("bulk import skips entries without email", func(t *testing.T) {
		t.Parallel()
		recipients := &memRecipientStore{}
		svc := service.NewRecipientService(recipients, discardLogger())

		count, err := svc.BulkImport(context.Background(), "user-1", []service.RecipientInput{
			{Email: "a@example.com"},
			{Email: ""},
			{Email: "b@example.com"},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.Len(t, recipients.list, 2)
	})

	t.Run("delete is owner scoped", func(t *testing.T) {
		t.Parallel()
		recipients := &memRecipientStore{}
		recipients.list = []model.Recipient{{ID: "r1", UserID: "user-1", Email: "a@example.com"}}
		svc := service.NewRecipientService(recipients, discardLogger())

		err := svc.Delete(context.Background(), "user-2", "r1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		require.NoError(t, svc.Delete(context.Background(), "user-1", "r1"))
		assert.Empty(t, recipients.list)
	})
}

func TestCampaignService_StartPublishFailure(t *testing.T) {
	t.Parallel()

	campaigns := newMemCampaigns(&model.Campaign{ID: "c1", UserID: "user-1", Status: model.StatusDraft})
	recipients := &memRecipients{list: []model.Recipient{{ID: "r1", UserID: "user-1", Email: "a@example.com"}}}
	jobs := &memPublisher{err: errors.New("broker down")}
	svc := service.NewCampaignService(campaigns, recipients, &memLogs{}, jobs, discardLogger())

	err := svc.Start(context.Background(), "user-1", "c1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to enqueue dispatch job")
}
