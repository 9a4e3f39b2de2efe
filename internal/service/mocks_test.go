package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/printforge/printforge/internal/core"
	"github.com/printforge/printforge/internal/domain/model"
)

// fakeJobRepo is an in-memory JobRepository for service tests.
type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.Job

	getErr          error
	updateStatusErr error

	statusUpdates   []statusUpdate
	metadataUpdates map[string]*model.ModelMetadata
	submittedAt     map[string]time.Time
	webhookAttempts map[string]int
}

type statusUpdate struct {
	jobID  string
	params model.UpdateStatusParams
}

func newFakeJobRepo(jobs ...*model.Job) *fakeJobRepo {
	r := &fakeJobRepo{
		jobs:            make(map[string]*model.Job),
		metadataUpdates: make(map[string]*model.ModelMetadata),
		submittedAt:     make(map[string]time.Time),
		webhookAttempts: make(map[string]int),
	}
	for _, j := range jobs {
		r.jobs[j.ID] = j
	}
	return r
}

func (r *fakeJobRepo) Create(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := &model.Job{
		ID:            fmt.Sprintf("job-%d", len(r.jobs)+1),
		UserID:        req.UserID,
		Filename:      req.Filename,
		StoragePath:   req.StoragePath,
		FileSizeBytes: req.FileSizeBytes,
		Status:        model.JobStatusPending,
		PrintSettings: req.PrintSettings,
		WebhookURL:    req.WebhookURL,
	}
	r.jobs[job.ID] = job
	return job, nil
}

func (r *fakeJobRepo) GetByID(_ context.Context, id string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (r *fakeJobRepo) UpdateStatus(_ context.Context, id string, params model.UpdateStatusParams) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateStatusErr != nil {
		return nil, r.updateStatusErr
	}
	r.statusUpdates = append(r.statusUpdates, statusUpdate{jobID: id, params: params})
	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	job.Status = params.Status
	job.ErrorMessage = params.ErrorMessage
	copied := *job
	return &copied, nil
}

func (r *fakeJobRepo) UpdateModelMetadata(_ context.Context, id string, meta *model.ModelMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadataUpdates[id] = meta
	if job, ok := r.jobs[id]; ok {
		job.ModelMetadata = meta
	}
	return nil
}

func (r *fakeJobRepo) MarkSubmitted(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submittedAt[id] = at
	return nil
}

func (r *fakeJobRepo) ListNonTerminal(_ context.Context) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Job
	for _, job := range r.jobs {
		if !job.Status.Terminal() {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeJobRepo) IncrementWebhookAttempts(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.webhookAttempts[id]++
	return nil
}

func (r *fakeJobRepo) updates() []statusUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]statusUpdate, len(r.statusUpdates))
	copy(out, r.statusUpdates)
	return out
}

func (r *fakeJobRepo) jobStatus(id string) model.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		return job.Status
	}
	return ""
}

func coreStatus(status string) core.ExternalJobStatus {
	return core.ExternalJobStatus{Status: status}
}

func coreStatusWithError(status string, detail *string) core.ExternalJobStatus {
	return core.ExternalJobStatus{Status: status, Error: detail}
}

// fakePrintService scripts per-job status responses.
type fakePrintService struct {
	mu        sync.Mutex
	statuses  map[string]core.ExternalJobStatus
	statusErr map[string]error
	panicOn   map[string]bool
	submitErr error
	submitted []core.SubmitJobParams
	calls     int
}

func newFakePrintService() *fakePrintService {
	return &fakePrintService{
		statuses:  make(map[string]core.ExternalJobStatus),
		statusErr: make(map[string]error),
		panicOn:   make(map[string]bool),
	}
}

func (f *fakePrintService) Submit(_ context.Context, params core.SubmitJobParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return f.submitErr
	}
	f.submitted = append(f.submitted, params)
	return nil
}

func (f *fakePrintService) JobStatus(_ context.Context, jobID string) (*core.ExternalJobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panicOn[jobID] {
		panic("print service exploded")
	}
	if err, ok := f.statusErr[jobID]; ok {
		return nil, err
	}
	status, ok := f.statuses[jobID]
	if !ok {
		return &core.ExternalJobStatus{Status: "printing"}, nil
	}
	return &status, nil
}

func (f *fakePrintService) Cancel(context.Context, string) (bool, error) { return true, nil }

func (f *fakePrintService) Health(context.Context) error { return nil }

// fakeWebhookSender records deliveries on a channel so tests can wait for
// the async dispatch.
type fakeWebhookSender struct {
	sent chan *model.Job
}

func newFakeWebhookSender() *fakeWebhookSender {
	return &fakeWebhookSender{sent: make(chan *model.Job, 16)}
}

func (f *fakeWebhookSender) Send(_ context.Context, job *model.Job) bool {
	f.sent <- job
	return true
}

// fakeBlobRepo is an in-memory object store.
type fakeBlobRepo struct {
	mu       sync.Mutex
	objects  map[string][]byte
	fetchErr error
	storeErr error
	removed  []string
}

func newFakeBlobRepo() *fakeBlobRepo {
	return &fakeBlobRepo{objects: make(map[string][]byte)}
}

func (f *fakeBlobRepo) Fetch(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	data, ok := f.objects[path]
	if !ok {
		return nil, fmt.Errorf("object %s not found", path)
	}
	return data, nil
}

func (f *fakeBlobRepo) Store(_ context.Context, path string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return f.storeErr
	}
	f.objects[path] = data
	return nil
}

func (f *fakeBlobRepo) Remove(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, path)
	f.removed = append(f.removed, path)
	return nil
}

// fakeCacheRepo is an in-memory TTL-less cache.
type fakeCacheRepo struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{entries: make(map[string][]byte)}
}

func (f *fakeCacheRepo) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = value
	return nil
}

func (f *fakeCacheRepo) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[key], nil
}

func (f *fakeCacheRepo) Delete(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[key]
	delete(f.entries, key)
	return ok, nil
}

// frozenClock is a fixed TimeProvider.
type frozenClock struct{ at time.Time }

func (c frozenClock) Now() time.Time { return c.at }
