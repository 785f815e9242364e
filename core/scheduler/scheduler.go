package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"check-orchestrator/config"
	"check-orchestrator/core/classifier"
	"check-orchestrator/core/driver"
	"check-orchestrator/core/models"
	"check-orchestrator/core/proxypool"
	"check-orchestrator/core/ratelimit"
)

// ResultConsumer receives every terminal result (metrics, archive)
type ResultConsumer interface {
	Record(res models.CheckResult)
}

// Forwarder pushes terminal results to an external consumer, best effort
type Forwarder interface {
	Dispatch(res models.CheckResult)
}

// SubmitSpec is one validated-on-entry submission
type SubmitSpec struct {
	Site     string
	Card     models.Card
	UseProxy bool
	NoWait   bool
}

// jobState pairs a job with the runtime fields owned by the scheduler
type jobState struct {
	job       *models.CheckJob
	prepaid   bool // rate token already consumed for the current admission
	cancelled bool
	cancel    context.CancelFunc // set while an attempt is in flight
	proxy     *models.ProxyEntry
}

// Scheduler admits jobs from the queue into a bounded set of worker slots,
// respecting the rate limiter and proxy pool, and drives each attempt
// through the session driver and classifier.
type Scheduler struct {
	cfg   config.Config
	sites map[string]config.Site

	queue      *jobQueue
	limiter    *ratelimit.Limiter
	pool       *proxypool.Pool
	drv        driver.Driver
	classifier *classifier.Classifier
	idgen      *driver.IdentityGenerator

	metrics   ResultConsumer
	archive   ResultConsumer // may be nil
	forwarder Forwarder      // may be nil

	slots    chan struct{}
	kick     chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu         sync.Mutex
	jobs       map[string]*jobState
	results    map[string]models.CheckResult
	resultIDs  []string // terminal job ids, oldest first, for eviction
	batches    map[string][]string
	batchOrder []string

	log zerolog.Logger
}

// New creates a scheduler. archive and forwarder may be nil.
func New(
	cfg config.Config,
	sites []config.Site,
	drv driver.Driver,
	limiter *ratelimit.Limiter,
	pool *proxypool.Pool,
	cls *classifier.Classifier,
	idgen *driver.IdentityGenerator,
	metrics ResultConsumer,
	archive ResultConsumer,
	forwarder Forwarder,
	log zerolog.Logger,
) *Scheduler {
	siteMap := make(map[string]config.Site, len(sites))
	for _, s := range sites {
		siteMap[s.ID] = s
	}
	return &Scheduler{
		cfg:        cfg,
		sites:      siteMap,
		queue:      newJobQueue(),
		limiter:    limiter,
		pool:       pool,
		drv:        drv,
		classifier: cls,
		idgen:      idgen,
		metrics:    metrics,
		archive:    archive,
		forwarder:  forwarder,
		slots:      make(chan struct{}, cfg.Concurrency),
		kick:       make(chan struct{}, 1),
		stopChan:   make(chan struct{}),
		jobs:       make(map[string]*jobState),
		results:    make(map[string]models.CheckResult),
		batches:    make(map[string][]string),
		log:        log.With().Str("component", "scheduler").Logger(),
	}
}

// Start runs the dispatch loop until ctx is cancelled or Stop is called.
// Run it in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.DispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-s.kick:
		case <-ticker.C:
		}
		s.dispatchReady(ctx)
	}
}

// Stop stops the dispatch loop and waits for in-flight workers to finish
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
}

// Submit validates and enqueues a single check job, returning its id.
// With NoWait set, the rate token is reserved up front and an exhausted
// budget rejects the submission with ErrRateLimited.
func (s *Scheduler) Submit(spec SubmitSpec) (string, error) {
	spec.Site = strings.ToLower(spec.Site)
	if err := s.validate(spec.Site, spec.Card); err != nil {
		return "", err
	}

	job := s.newJob(spec, "")
	st := &jobState{job: job}
	if spec.NoWait {
		if !s.limiter.TryConsume(job.Category()) {
			return "", ErrRateLimited
		}
		st.prepaid = true
	}
	s.register(st)
	s.queue.push(job.Category(), st)
	s.kickDispatch()

	s.log.Info().
		Str("job_id", job.ID).
		Str("website", job.Site).
		Str("card", job.Card.Masked()).
		Msg("job queued")
	return job.ID, nil
}

// SubmitBatch enqueues one job per card under a shared batch id. Jobs within
// a batch are independent: one failure never blocks siblings. With noWait,
// cards that cannot reserve a bulk token are rejected; rejected reports how
// many.
func (s *Scheduler) SubmitBatch(site string, cards []models.Card, useProxy, noWait bool) (batchID string, ids []string, rejected int, err error) {
	site = strings.ToLower(site)
	if len(cards) == 0 {
		return "", nil, 0, &ValidationError{Field: "cards", Reason: "must be a non-empty array"}
	}
	if len(cards) > s.cfg.BulkMaxSize {
		return "", nil, 0, &ValidationError{Field: "cards", Reason: "batch exceeds maximum size"}
	}
	for _, card := range cards {
		if err := s.validate(site, card); err != nil {
			return "", nil, 0, err
		}
	}

	batchID = uuid.NewString()
	for _, card := range cards {
		job := s.newJob(SubmitSpec{Site: site, Card: card, UseProxy: useProxy, NoWait: noWait}, batchID)
		st := &jobState{job: job}
		if noWait {
			if !s.limiter.TryConsume(models.CategoryBulk) {
				rejected++
				continue
			}
			st.prepaid = true
		}
		s.register(st)
		s.queue.push(models.CategoryBulk, st)
		ids = append(ids, job.ID)
	}

	s.mu.Lock()
	s.batches[batchID] = ids
	if keep := s.cfg.ResultsRetained; keep > 0 {
		s.batchOrder = append(s.batchOrder, batchID)
		for len(s.batchOrder) > keep {
			delete(s.batches, s.batchOrder[0])
			s.batchOrder = s.batchOrder[1:]
		}
	}
	s.mu.Unlock()
	s.kickDispatch()

	s.log.Info().
		Str("batch_id", batchID).
		Int("queued", len(ids)).
		Int("rejected", rejected).
		Str("website", site).
		Msg("batch queued")
	return batchID, ids, rejected, nil
}

// Cancel cancels a job. Queued jobs become terminal immediately; a running
// job has its attempt context cancelled and reaches cancelled once the
// driver returns or the deadline fires.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	st, active := s.jobs[id]
	if !active {
		_, done := s.results[id]
		s.mu.Unlock()
		if done {
			return ErrNotCancellable
		}
		return ErrJobNotFound
	}

	st.cancelled = true
	if st.cancel != nil {
		st.cancel()
	}
	queued := st.job.Status == models.JobStatusQueued
	s.mu.Unlock()

	if queued && s.queue.remove(id) != nil {
		s.finalize(st, s.classifier.Cancelled(st.job))
	}
	return nil
}

// JobView is the externally visible state of a job
type JobView struct {
	ID        string              `json:"job_id"`
	BatchID   string              `json:"batch_id,omitempty"`
	Site      string              `json:"website"`
	Status    models.JobStatus    `json:"status"`
	Attempts  int                 `json:"attempts"`
	CreatedAt time.Time           `json:"created_at"`
	Result    *models.CheckResult `json:"result,omitempty"`
}

// Get returns the current state of a job, including its terminal result
// once classified.
func (s *Scheduler) Get(id string) (JobView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.jobs[id]; ok {
		return JobView{
			ID:        st.job.ID,
			BatchID:   st.job.BatchID,
			Site:      st.job.Site,
			Status:    st.job.Status,
			Attempts:  st.job.Attempts,
			CreatedAt: st.job.CreatedAt,
		}, nil
	}
	if res, ok := s.results[id]; ok {
		return JobView{
			ID:       res.JobID,
			BatchID:  res.BatchID,
			Site:     res.Site,
			Status:   statusFor(res.Outcome),
			Attempts: res.Attempts,
			Result:   &res,
		}, nil
	}
	return JobView{}, ErrJobNotFound
}

// BatchView summarizes a batch and its per-job states
type BatchView struct {
	BatchID  string    `json:"batch_id"`
	Total    int       `json:"total"`
	Pending  int       `json:"pending"`
	Verified int       `json:"verified"`
	Rejected int       `json:"rejected"`
	Errors   int       `json:"errors"`
	Jobs     []JobView `json:"jobs"`
}

// Batch returns the state of every job in a batch
func (s *Scheduler) Batch(batchID string) (BatchView, error) {
	s.mu.Lock()
	ids, ok := s.batches[batchID]
	s.mu.Unlock()
	if !ok {
		return BatchView{}, ErrBatchNotFound
	}

	view := BatchView{BatchID: batchID, Total: len(ids)}
	for _, id := range ids {
		jv, err := s.Get(id)
		if err != nil {
			continue
		}
		view.Jobs = append(view.Jobs, jv)
		if jv.Result == nil {
			view.Pending++
			continue
		}
		switch jv.Result.Outcome {
		case models.OutcomeVerified:
			view.Verified++
		case models.OutcomeRejected:
			view.Rejected++
		default:
			view.Errors++
		}
	}
	return view, nil
}

// Sites returns the supported target-site identifiers
func (s *Scheduler) Sites() []string {
	ids := make([]string, 0, len(s.sites))
	for id := range s.sites {
		ids = append(ids, id)
	}
	return ids
}

// QueueDepth returns the number of jobs waiting for admission
func (s *Scheduler) QueueDepth() int {
	return s.queue.depth()
}

func (s *Scheduler) validate(site string, card models.Card) error {
	if site == "" {
		return &ValidationError{Field: "website", Reason: "required"}
	}
	if _, ok := s.sites[site]; !ok {
		return &ValidationError{Field: "website", Reason: "unsupported website"}
	}
	if card.Number == "" {
		return &ValidationError{Field: "card_number", Reason: "required"}
	}
	if card.ExpMonth == "" || card.ExpYear == "" {
		return &ValidationError{Field: "expiry", Reason: "required"}
	}
	return nil
}

func (s *Scheduler) newJob(spec SubmitSpec, batchID string) *models.CheckJob {
	return &models.CheckJob{
		ID:        uuid.NewString(),
		Site:      spec.Site,
		Card:      spec.Card,
		UseProxy:  spec.UseProxy && s.cfg.UseProxy,
		NoWait:    spec.NoWait,
		BatchID:   batchID,
		Status:    models.JobStatusQueued,
		CreatedAt: time.Now(),
	}
}

func (s *Scheduler) register(st *jobState) {
	s.mu.Lock()
	s.jobs[st.job.ID] = st
	s.mu.Unlock()
}

func (s *Scheduler) kickDispatch() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// dispatchReady admits as many queued jobs as budgets, proxies and worker
// slots allow. Admission order per category: rate budget, then proxy, then
// hand-off to a worker slot.
func (s *Scheduler) dispatchReady(ctx context.Context) {
	for _, cat := range []models.Category{models.CategorySingle, models.CategoryBulk} {
		for {
			// A free worker slot is the precondition for everything else.
			select {
			case s.slots <- struct{}{}:
			default:
				return
			}

			st := s.queue.pop(cat)
			if st == nil {
				<-s.slots
				break
			}

			s.mu.Lock()
			cancelled := st.cancelled
			s.mu.Unlock()
			if cancelled {
				<-s.slots
				s.finalize(st, s.classifier.Cancelled(st.job))
				continue
			}

			if !st.prepaid && !s.limiter.TryConsume(cat) {
				s.queue.pushFront(cat, st)
				<-s.slots
				break
			}
			// The token stays paid while admission stalls on a proxy or
			// slot below. It covers this admission only: a retry clears
			// the flag and pays the budget again like a fresh job.
			st.prepaid = true

			if st.job.UseProxy && s.pool != nil {
				proxy, err := s.pool.Lease()
				if err != nil && s.cfg.ProxyRequired {
					// The job stays queued until a proxy frees up; the
					// other category may still have admissible jobs.
					s.queue.pushFront(cat, st)
					<-s.slots
					break
				}
				if err == nil {
					st.proxy = proxy
				}
				// Proxy use is optional otherwise: with the pool exhausted
				// the attempt proceeds without one.
			}

			s.mu.Lock()
			st.job.Status = models.JobStatusAssigned
			s.mu.Unlock()

			s.wg.Add(1)
			go s.run(ctx, st)
		}
	}
}

// run drives one attempt: Assigned → Running → classifier decision.
func (s *Scheduler) run(ctx context.Context, st *jobState) {
	defer s.wg.Done()
	defer func() { <-s.slots; s.kickDispatch() }()

	job := st.job

	s.mu.Lock()
	if st.cancelled {
		s.mu.Unlock()
		s.releaseProxy(st, true)
		s.finalize(st, s.classifier.Cancelled(job))
		return
	}
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.CheckTimeout)
	st.cancel = cancel
	job.Attempts++
	job.Status = models.JobStatusRunning
	now := time.Now()
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	s.mu.Unlock()
	defer cancel()

	site := s.sites[job.Site]
	req := driver.AttemptRequest{
		JobID:    job.ID,
		SiteID:   site.ID,
		SiteURL:  site.URL,
		Card:     job.Card,
		Proxy:    st.proxy,
		Identity: s.idgen.Generate(),
	}

	outCh := make(chan driver.RawOutcome, 1)
	go func() {
		outCh <- s.drv.Attempt(attemptCtx, req)
	}()

	var out driver.RawOutcome
	received := false
	select {
	case out = <-outCh:
		received = true
	case <-attemptCtx.Done():
	}

	s.mu.Lock()
	st.cancel = nil
	cancelled := st.cancelled
	s.mu.Unlock()

	proxyOK := cancelled || (received && (out.Kind == driver.Success || out.Kind == driver.Rejected))
	s.releaseProxy(st, proxyOK)

	if cancelled {
		s.finalize(st, s.classifier.Cancelled(job))
		return
	}

	decision := s.classifier.Classify(job, out, !received)
	if decision.Retry {
		s.log.Info().
			Str("job_id", job.ID).
			Int("attempt", job.Attempts).
			Bool("timed_out", !received).
			Str("reason", out.Reason).
			Msg("attempt failed, requeueing")
		s.mu.Lock()
		job.Status = models.JobStatusQueued
		s.mu.Unlock()
		// A retry is billed like a fresh job: it goes back through the
		// token gate on its next admission.
		st.prepaid = false
		s.queue.push(job.Category(), st)
		return
	}
	s.finalize(st, decision.Result)
}

func (s *Scheduler) releaseProxy(st *jobState, ok bool) {
	if st.proxy == nil || s.pool == nil {
		return
	}
	s.pool.Release(st.proxy, ok)
	st.proxy = nil
}

// finalize marks a job terminal, retires it from active tracking and fans
// the result out to metrics, archive and the outbound dispatcher.
func (s *Scheduler) finalize(st *jobState, res models.CheckResult) {
	job := st.job

	s.mu.Lock()
	finished := res.FinishedAt
	job.FinishedAt = &finished
	job.Status = statusFor(res.Outcome)
	delete(s.jobs, job.ID)
	s.results[job.ID] = res
	// Retention is capped so a long-running worker does not accumulate
	// terminal results without bound; the oldest are dropped first.
	if keep := s.cfg.ResultsRetained; keep > 0 {
		s.resultIDs = append(s.resultIDs, job.ID)
		for len(s.resultIDs) > keep {
			delete(s.results, s.resultIDs[0])
			s.resultIDs = s.resultIDs[1:]
		}
	}
	s.mu.Unlock()

	s.metrics.Record(res)
	if s.archive != nil {
		s.archive.Record(res)
	}
	if s.forwarder != nil {
		go s.forwarder.Dispatch(res)
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("website", res.Site).
		Str("card", res.MaskedCard).
		Str("result", string(res.Outcome)).
		Int("attempts", res.Attempts).
		Dur("duration", res.Duration).
		Msg("job finished")
}

func statusFor(outcome models.Outcome) models.JobStatus {
	switch outcome {
	case models.OutcomeVerified, models.OutcomeRejected:
		return models.JobStatusCompleted
	case models.OutcomeTimedOut:
		return models.JobStatusTimedOut
	case models.OutcomeCancelled:
		return models.JobStatusCancelled
	default:
		return models.JobStatusFailed
	}
}
