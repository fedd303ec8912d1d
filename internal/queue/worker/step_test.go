package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	domjob "github.com/swiftloan/api/internal/domain/job"
	"github.com/swiftloan/api/internal/domain/ticket"
	"github.com/swiftloan/api/internal/domain/user"
	"github.com/swiftloan/api/internal/jobs"
	"github.com/swiftloan/api/internal/notifications"
)

type fakeJobsRepo struct {
	queue []domjob.Job

	doneIDs     []string
	rescheduled []string
	failed      []string
}

func (f *fakeJobsRepo) ClaimNext(ctx context.Context, workerID string) (domjob.Job, error) {
	if len(f.queue) == 0 {
		return domjob.Job{}, domjob.ErrJobNotFound
	}
	j := f.queue[0]
	f.queue = f.queue[1:]
	j.Attempts++
	return j, nil
}

func (f *fakeJobsRepo) MarkDone(ctx context.Context, id string) error {
	f.doneIDs = append(f.doneIDs, id)
	return nil
}

func (f *fakeJobsRepo) Reschedule(ctx context.Context, id string, runAt time.Time, lastErr string) error {
	f.rescheduled = append(f.rescheduled, id)
	return nil
}

func (f *fakeJobsRepo) MarkFailed(ctx context.Context, id string, lastErr string) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeUsersRepo struct{ u user.User }

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return f.u, nil
}

type fakeTicketsRepo struct{ t ticket.Ticket }

func (f *fakeTicketsRepo) GetByID(ctx context.Context, id string) (ticket.Ticket, error) {
	return f.t, nil
}

type recordingNotifier struct {
	err       error
	decisions []notifications.LoanDecisionInput
	replies   []notifications.SupportReplyInput
}

func (r *recordingNotifier) SendLoanDecision(ctx context.Context, in notifications.LoanDecisionInput) error {
	r.decisions = append(r.decisions, in)
	return r.err
}

func (r *recordingNotifier) SendSupportReply(ctx context.Context, in notifications.SupportReplyInput) error {
	r.replies = append(r.replies, in)
	return r.err
}

func newTestWorker(jobsRepo *fakeJobsRepo, n notifications.Notifier) *Worker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := &fakeUsersRepo{u: user.User{ID: "u1", Email: "jane@x.io", Name: "Jane"}}
	tickets := &fakeTicketsRepo{t: ticket.Ticket{ID: "t1", Subject: "card declined"}}
	return New(Config{WorkerID: "test-1"}, jobsRepo, users, tickets, n, logger, nil)
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestProcessOneDeliversLoanDecision(t *testing.T) {
	payload := mustJSON(t, jobs.LoanDecisionPayload{LoanID: "l1", UserID: "u1", Decision: "approved", Amount: 5000})
	repo := &fakeJobsRepo{queue: []domjob.Job{{ID: "j1", Type: jobs.TypeLoanDecision, Payload: payload, MaxAttempts: 10}}}
	n := &recordingNotifier{}

	processed, err := newTestWorker(repo, n).ProcessOne(context.Background())
	if err != nil || !processed {
		t.Fatalf("processed=%v err=%v", processed, err)
	}
	if len(n.decisions) != 1 || n.decisions[0].Email != "jane@x.io" || n.decisions[0].Decision != "approved" {
		t.Fatalf("unexpected notifications: %+v", n.decisions)
	}
	if len(repo.doneIDs) != 1 || repo.doneIDs[0] != "j1" {
		t.Fatalf("expected j1 marked done, got %v", repo.doneIDs)
	}
}

func TestProcessOneDeliversSupportReply(t *testing.T) {
	payload := mustJSON(t, jobs.SupportReplyPayload{TicketID: "t1", UserID: "u1", ReplyID: "r1"})
	repo := &fakeJobsRepo{queue: []domjob.Job{{ID: "j2", Type: jobs.TypeSupportReply, Payload: payload, MaxAttempts: 10}}}
	n := &recordingNotifier{}

	if _, err := newTestWorker(repo, n).ProcessOne(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(n.replies) != 1 || n.replies[0].Subject != "card declined" {
		t.Fatalf("unexpected replies: %+v", n.replies)
	}
}

func TestProcessOneReschedulesTransientFailure(t *testing.T) {
	payload := mustJSON(t, jobs.LoanDecisionPayload{LoanID: "l1", UserID: "u1", Decision: "rejected"})
	repo := &fakeJobsRepo{queue: []domjob.Job{{ID: "j3", Type: jobs.TypeLoanDecision, Payload: payload, MaxAttempts: 10}}}
	n := &recordingNotifier{err: errors.New("smtp timeout")}

	if _, err := newTestWorker(repo, n).ProcessOne(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(repo.rescheduled) != 1 {
		t.Fatalf("expected reschedule, got rescheduled=%v failed=%v", repo.rescheduled, repo.failed)
	}
}

func TestProcessOneFailsPermanentlyOnBadPayload(t *testing.T) {
	repo := &fakeJobsRepo{queue: []domjob.Job{{ID: "j4", Type: jobs.TypeLoanDecision, Payload: json.RawMessage(`{"loanId":""}`), MaxAttempts: 10}}}
	n := &recordingNotifier{}

	if _, err := newTestWorker(repo, n).ProcessOne(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(repo.failed) != 1 || repo.failed[0] != "j4" {
		t.Fatalf("expected permanent failure, failed=%v rescheduled=%v", repo.failed, repo.rescheduled)
	}
}

func TestProcessOneFailsAfterMaxAttempts(t *testing.T) {
	payload := mustJSON(t, jobs.LoanDecisionPayload{LoanID: "l1", UserID: "u1", Decision: "approved"})
	repo := &fakeJobsRepo{queue: []domjob.Job{{ID: "j5", Type: jobs.TypeLoanDecision, Payload: payload, Attempts: 9, MaxAttempts: 10}}}
	n := &recordingNotifier{err: errors.New("smtp down")}

	if _, err := newTestWorker(repo, n).ProcessOne(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(repo.failed) != 1 {
		t.Fatalf("expected MarkFailed at attempt cap, failed=%v rescheduled=%v", repo.failed, repo.rescheduled)
	}
}

func TestProcessOneEmptyQueue(t *testing.T) {
	repo := &fakeJobsRepo{}
	processed, err := newTestWorker(repo, &recordingNotifier{}).ProcessOne(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if processed {
		t.Fatal("expected no job processed")
	}
}
