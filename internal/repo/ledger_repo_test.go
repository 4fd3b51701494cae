package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tbourn/go-community-sim/internal/domain"
)

func TestCreateTransaction_AppendsWithID(t *testing.T) {
	db := newRepoDB(t, &domain.CoinTransaction{})
	ctx := context.Background()

	tx := &domain.CoinTransaction{
		UserID:   "u1",
		Type:     domain.TxEarn,
		Amount:   1,
		Category: domain.TxCategoryDaily,
		Reason:   "daily login reward",
	}
	if err := CreateTransaction(ctx, db, tx); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if tx.ID == "" || tx.CreatedAt.IsZero() {
		t.Fatalf("id/timestamp not set: %+v", tx)
	}
}

func TestListTransactionsSince_FiltersByUserAndCutoff(t *testing.T) {
	db := newRepoDB(t, &domain.CoinTransaction{})
	ctx := context.Background()

	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	seed := func(id, user string, at time.Time) {
		tx := domain.CoinTransaction{
			ID: id, UserID: user, Type: domain.TxEarn, Amount: 1,
			Category: domain.TxCategoryDaily, CreatedAt: at,
		}
		if err := db.Create(&tx).Error; err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	seed("t-old", "u1", now.Add(-10*24*time.Hour))
	seed("t-new", "u1", now.Add(-time.Hour))
	seed("t-other", "u2", now.Add(-time.Hour))

	got, err := ListTransactionsSince(ctx, db, "u1", now.Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("ListTransactionsSince: %v", err)
	}
	if len(got) != 1 || got[0].ID != "t-new" {
		t.Fatalf("week window = %+v", got)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	db := newRepoDB(t, &domain.UserProfile{})
	ctx := context.Background()

	if _, err := GetProfile(ctx, db, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	p := &domain.UserProfile{UserID: "u1", Username: "alice"}
	if err := CreateProfile(ctx, db, p); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}

	p.Balance = 7
	p.TotalEarned = 9
	if err := SaveProfile(ctx, db, p); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	got, err := GetProfile(ctx, db, "u1")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if got.Balance != 7 || got.TotalEarned != 9 {
		t.Fatalf("profile = %+v", got)
	}
}

func TestTopProfilesByMonthlyEarnings(t *testing.T) {
	db := newRepoDB(t, &domain.UserProfile{})
	ctx := context.Background()

	for i, earned := range []int{3, 12, 7} {
		p := &domain.UserProfile{UserID: fmt.Sprintf("u%d", i), MonthlyEarned: earned}
		if err := CreateProfile(ctx, db, p); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	top, err := TopProfilesByMonthlyEarnings(ctx, db, 2)
	if err != nil {
		t.Fatalf("TopProfilesByMonthlyEarnings: %v", err)
	}
	if len(top) != 2 || top[0].UserID != "u1" || top[1].UserID != "u2" {
		t.Fatalf("top = %+v", top)
	}
}

func TestAnswerVotes_MembershipAndUnique(t *testing.T) {
	db := newRepoDB(t, &domain.Question{}, &domain.Answer{}, &domain.AnswerVote{})
	ctx := context.Background()

	q := &domain.Question{AuthorID: "asker", Title: "t", Content: "c", ContentHash: "h"}
	if err := CreateQuestion(ctx, db, q); err != nil {
		t.Fatalf("seed: %v", err)
	}
	a := &domain.Answer{QuestionID: q.ID, AuthorID: "author", Content: "c", ContentHash: "ah"}
	if err := CreateAnswer(ctx, db, a); err != nil {
		t.Fatalf("seed: %v", err)
	}

	voted, err := HasVoted(ctx, db, a.ID, "v1")
	if err != nil || voted {
		t.Fatalf("HasVoted before = (%v, %v)", voted, err)
	}
	if err := CreateAnswerVote(ctx, db, a.ID, "v1"); err != nil {
		t.Fatalf("CreateAnswerVote: %v", err)
	}
	voted, err = HasVoted(ctx, db, a.ID, "v1")
	if err != nil || !voted {
		t.Fatalf("HasVoted after = (%v, %v)", voted, err)
	}
	// The unique (answer_id, voter_id) index rejects a replay.
	if err := CreateAnswerVote(ctx, db, a.ID, "v1"); err == nil {
		t.Fatalf("duplicate vote row accepted")
	}
}

func TestUpdateAnswerVoteState(t *testing.T) {
	db := newRepoDB(t, &domain.Question{}, &domain.Answer{})
	ctx := context.Background()

	q := &domain.Question{AuthorID: "asker", Title: "t", Content: "c", ContentHash: "h"}
	if err := CreateQuestion(ctx, db, q); err != nil {
		t.Fatalf("seed: %v", err)
	}
	a := &domain.Answer{QuestionID: q.ID, AuthorID: "author", Content: "c", ContentHash: "ah"}
	if err := CreateAnswer(ctx, db, a); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := UpdateAnswerVoteState(ctx, db, a.ID, 7, 6, true); err != nil {
		t.Fatalf("UpdateAnswerVoteState: %v", err)
	}
	got, err := GetAnswer(ctx, db, a.ID)
	if err != nil {
		t.Fatalf("GetAnswer: %v", err)
	}
	if got.TotalVotes != 7 || got.CoinsEarned != 6 || !got.IsBestAnswer {
		t.Fatalf("answer = %+v", got)
	}

	if err := UpdateAnswerVoteState(ctx, db, "missing", 1, 1, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
