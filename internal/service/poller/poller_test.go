package poller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/oshokin/metadeploy/internal/domain/deploy"
	"github.com/oshokin/metadeploy/internal/service/common"
)

const testInterval = 5 * time.Second

// recordingReporter keeps what it was handed.
type recordingReporter struct {
	mu       sync.Mutex
	progress []State
	failures []*deploy.Job
}

func (r *recordingReporter) Progress(_ context.Context, s State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress = append(r.progress, s)
}

func (r *recordingReporter) Failures(_ context.Context, job *deploy.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failures = append(r.failures, job)
}

// statusServer answers the n-th request (1-based) with responses[n-1],
// repeating the last one.
func statusServer(t *testing.T, calls *atomic.Int32, responses ...func(w http.ResponseWriter)) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/services/data/v62.0/metadata/deployRequest/0Af1", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("includeDetails"))

		n := int(calls.Add(1))
		if n > len(responses) {
			n = len(responses)
		}

		w.Header().Set("Content-Type", "application/json")
		responses[n-1](w)
	}))
	t.Cleanup(server.Close)

	return server
}

func reply(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

const (
	inProgress = `{"id":"0Af1","deployResult":{"done":false,"status":"InProgress"}}`
	succeeded  = `{"id":"0Af1","deployResult":{"done":true,"status":"Succeeded","success":true}}`
	twoFailed  = `{"id":"0Af1","deployResult":{"done":true,"status":"Failed","success":false,
		"details":{"componentFailures":[
			{"fileName":"classes/Foo.cls","problem":"Unexpected token","componentType":"ApexClass","lineNumber":3},
			{"fileName":"classes/Bar.cls","problem":"Variable does not exist: x"}]}}}`
)

// pollOutcome is a finished Poll plus the fake time that passed.
type pollOutcome struct {
	job     *deploy.Job
	err     error
	elapsed time.Duration
}

// runPoll drives the fake clock while Poll waits.
func runPoll(t *testing.T, server *httptest.Server, budget int, opts ...Option) pollOutcome {
	t.Helper()

	start := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	fakeClock := testingclock.NewFakeClock(start)

	opts = append([]Option{
		WithClock(fakeClock),
		WithBudget(budget, testInterval),
		WithClientOptions(common.WithHTTPClient(server.Client())),
	}, opts...)

	done := make(chan pollOutcome, 1)

	go func() {
		session := deploy.Session{AccessToken: "tok", InstanceURL: server.URL}
		job, err := New(opts...).Poll(context.Background(), session, "0Af1")
		done <- pollOutcome{job: job, err: err}
	}()

	for {
		select {
		case res := <-done:
			res.elapsed = fakeClock.Since(start)
			return res
		default:
		}

		if fakeClock.HasWaiters() {
			fakeClock.Step(testInterval)
		} else {
			time.Sleep(time.Millisecond)
		}
	}
}

// TestPoll_DoneWithTwoFailures returns normally with failures in response order.
func TestPoll_DoneWithTwoFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := statusServer(t, &calls, reply(http.StatusOK, inProgress), reply(http.StatusOK, twoFailed))
	reporter := new(recordingReporter)

	out := runPoll(t, server, 30, WithReporter(reporter))
	require.NoError(t, out.err)

	job := out.job

	require.True(t, job.Done)
	require.False(t, job.Success)
	require.Equal(t, "Failed", job.Status)
	require.Equal(t, []deploy.ComponentFailure{
		{UnitName: "classes/Foo.cls", Problem: "Unexpected token", ComponentType: "ApexClass", LineNumber: 3},
		{UnitName: "classes/Bar.cls", Problem: "Variable does not exist: x"},
	}, job.Failures)

	require.EqualValues(t, 2, calls.Load())
	require.Equal(t, testInterval, out.elapsed)

	reporter.mu.Lock()
	defer reporter.mu.Unlock()

	require.Len(t, reporter.failures, 1)
	require.Same(t, job, reporter.failures[0])
	require.Len(t, reporter.progress, 2)
}

// TestPoll_TimesOutWithExactAttempts never sleeps after the last attempt.
func TestPoll_TimesOutWithExactAttempts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	const budget = 4

	server := statusServer(t, &calls, reply(http.StatusOK, inProgress))

	out := runPoll(t, server, budget)
	require.Nil(t, out.job)

	var timeoutErr *deploy.TimeoutError

	require.ErrorAs(t, out.err, &timeoutErr)
	require.Equal(t, budget, timeoutErr.Attempts)
	require.Equal(t, "0Af1", timeoutErr.JobID)
	require.Contains(t, out.err.Error(), "4 attempts")

	require.EqualValues(t, budget, calls.Load())
	require.Equal(t, (budget-1)*testInterval, out.elapsed)
	require.LessOrEqual(t, out.elapsed, budget*testInterval)
}

// TestPoll_TransientFailuresConsumeAttempts keeps polling through errors,
// 401 included, without escalating.
func TestPoll_TransientFailuresConsumeAttempts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := statusServer(t, &calls,
		reply(http.StatusInternalServerError, `oops`),
		reply(http.StatusUnauthorized, `[{"errorCode":"INVALID_SESSION_ID","message":"expired"}]`),
		reply(http.StatusOK, succeeded))

	out := runPoll(t, server, 3)
	require.NoError(t, out.err)
	require.True(t, out.job.Success)
	require.Empty(t, out.job.Failures)
	require.EqualValues(t, 3, calls.Load())
	require.Equal(t, 3, out.job.Attempts)
	require.Equal(t, 2*testInterval, out.elapsed)
}

// TestPoll_AllRequestsFail times out rather than returning the request error.
func TestPoll_AllRequestsFail(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := statusServer(t, &calls, reply(http.StatusServiceUnavailable, `down`))

	out := runPoll(t, server, 2)

	var timeoutErr *deploy.TimeoutError

	require.ErrorAs(t, out.err, &timeoutErr)
	require.Equal(t, 2, timeoutErr.Attempts)
}

// TestPoll_SingleObjectFailure accepts the non-array failure shape.
func TestPoll_SingleObjectFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := statusServer(t, &calls, reply(http.StatusOK,
		`{"deployResult":{"done":true,"status":"Failed",
		"details":{"componentFailures":{"fileName":"classes/Foo.cls","problem":"boom"}}}}`))

	out := runPoll(t, server, 1)
	require.NoError(t, out.err)
	require.Equal(t, []deploy.ComponentFailure{{UnitName: "classes/Foo.cls", Problem: "boom"}}, out.job.Failures)
}

// TestPoll_CancelWhileWaiting returns the context error.
func TestPoll_CancelWhileWaiting(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := statusServer(t, &calls, reply(http.StatusOK, inProgress))
	fakeClock := testingclock.NewFakeClock(time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)

	go func() {
		_, err := New(
			WithClock(fakeClock),
			WithClientOptions(common.WithHTTPClient(server.Client())),
		).Poll(ctx, deploy.Session{AccessToken: "tok", InstanceURL: server.URL}, "0Af1")
		done <- err
	}()

	require.Eventually(t, fakeClock.HasWaiters, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("poll did not return after cancel")
	}

	require.EqualValues(t, 1, calls.Load())
}

// TestPoll_HungRequestStaysWithinBudget cuts off a status request that never
// answers at the poll budget, even when the per-request timeout is longer.
func TestPoll_HungRequestStaysWithinBudget(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	const (
		attempts = 3
		interval = 50 * time.Millisecond
	)

	poller := New(
		WithBudget(attempts, interval),
		WithClientOptions(
			common.WithHTTPClient(server.Client()),
			common.WithCallTimeout(time.Minute),
		),
	)

	started := time.Now()
	job, err := poller.Poll(context.Background(), deploy.Session{AccessToken: "tok", InstanceURL: server.URL}, "0Af1")
	elapsed := time.Since(started)

	require.Nil(t, job)

	var timeoutErr *deploy.TimeoutError

	require.ErrorAs(t, err, &timeoutErr)
	require.Equal(t, 1, timeoutErr.Attempts)
	require.EqualValues(t, 1, calls.Load())
	require.GreaterOrEqual(t, elapsed, attempts*interval)
	require.Less(t, elapsed, attempts*interval+time.Second)
}

// TestPoll_APIVersion sends status requests on the configured version only.
func TestPoll_APIVersion(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/services/data/v60.0/metadata/deployRequest/0Af1", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(succeeded))
	}))
	t.Cleanup(server.Close)

	job, err := New(
		WithAPIVersion("60.0"),
		WithClientOptions(common.WithHTTPClient(server.Client()), common.WithAPIVersion("61.0")),
	).Poll(context.Background(), deploy.Session{AccessToken: "tok", InstanceURL: server.URL}, "0Af1")
	require.NoError(t, err)
	require.True(t, job.Success)
	require.Equal(t, 1, job.Attempts)
}

// TestNew_Defaults uses the documented budget.
func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	p := New()
	require.Equal(t, 30, p.attempts)
	require.Equal(t, 5*time.Second, p.interval)
	require.Equal(t, "62.0", p.apiVersion)

	p = New(WithBudget(0, -1))
	require.Equal(t, 30, p.attempts)
	require.Equal(t, 5*time.Second, p.interval)
}
