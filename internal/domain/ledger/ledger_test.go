package ledger

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/StageLive/internal/domain"
	"github.com/qrave1/StageLive/internal/domain/models"
)

// fakeClock выдает строго возрастающее время создания
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newLedger(opts Options) *Ledger {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)}
	opts.Now = clock.Now

	return New(uuid.New(), opts)
}

func TestLedger_Submit(t *testing.T) {
	req := require.New(t)
	l := newLedger(Options{MaxTextLength: 10})
	author := uuid.New()

	q, err := l.Submit(author, "  why Go?  ")
	req.NoError(err)
	req.Equal("why Go?", q.Text)
	req.Equal(author, q.AuthorID)
	req.Zero(q.Votes)
	req.True(q.IsApproved)
	req.False(q.IsHighlighted)
	req.False(q.IsAnswered)

	_, err = l.Submit(author, "   ")
	req.ErrorIs(err, domain.ErrValidation)

	_, err = l.Submit(author, strings.Repeat("я", 11))
	req.ErrorIs(err, domain.ErrValidation)

	req.Equal(1, l.Len())
}

func TestLedger_Submit_ModerationFirst(t *testing.T) {
	req := require.New(t)
	l := newLedger(Options{ModerationFirst: true})
	author := uuid.New()

	q, err := l.Submit(author, "hidden until approved")
	req.NoError(err)
	req.False(q.IsApproved)

	audience := models.Participant{UserID: uuid.New(), Role: models.RoleAudience}
	moderator := models.Participant{UserID: uuid.New(), Role: models.RoleOrganizer}
	owner := models.Participant{UserID: author, Role: models.RoleAudience}

	req.Empty(l.RankedFor(audience))
	req.Len(l.RankedFor(moderator), 1)
	req.Len(l.RankedFor(owner), 1)

	approve := true
	_, err = l.ToggleApproval(q.ID, &approve)
	req.NoError(err)
	req.Len(l.RankedFor(audience), 1)
}

func TestLedger_Vote_Toggle(t *testing.T) {
	req := require.New(t)
	l := newLedger(Options{})
	voter := uuid.New()

	q, err := l.Submit(uuid.New(), "question")
	req.NoError(err)

	for n := 1; n <= 7; n++ {
		// When the same voter votes n times
		got, err := l.Vote(q.ID, voter)
		req.NoError(err)

		// Then the voter is counted only after an odd number of votes
		if n%2 == 1 {
			req.Equal(1, got.Votes)
			req.Contains(got.VoterIDs, voter)
		} else {
			req.Zero(got.Votes)
			req.NotContains(got.VoterIDs, voter)
		}
	}
}

func TestLedger_Vote_DistinctVoters(t *testing.T) {
	req := require.New(t)
	l := newLedger(Options{})

	q, err := l.Submit(uuid.New(), "question")
	req.NoError(err)

	for range 3 {
		_, err = l.Vote(q.ID, uuid.New())
		req.NoError(err)
	}

	got, err := l.Get(q.ID)
	req.NoError(err)
	req.Equal(3, got.Votes)
	req.Len(got.VoterIDs, 3)

	_, err = l.Vote(uuid.New(), uuid.New())
	req.ErrorIs(err, domain.ErrNotFound)
}

func TestLedger_MarkAnswered_Irreversible(t *testing.T) {
	req := require.New(t)
	l := newLedger(Options{})

	q, err := l.Submit(uuid.New(), "question")
	req.NoError(err)

	got, err := l.MarkAnswered(q.ID)
	req.NoError(err)
	req.True(got.IsAnswered)

	got, err = l.MarkAnswered(q.ID)
	req.NoError(err)
	req.True(got.IsAnswered)

	// An answered question can still be highlighted
	change, err := l.Highlight(&q.ID)
	req.NoError(err)
	req.NotNil(change.Current)
	req.True(change.Current.IsHighlighted)
	req.True(change.Current.IsAnswered)
}

func TestLedger_ToggleApproval_Flip(t *testing.T) {
	req := require.New(t)
	l := newLedger(Options{})

	q, err := l.Submit(uuid.New(), "question")
	req.NoError(err)
	req.True(q.IsApproved)

	got, err := l.ToggleApproval(q.ID, nil)
	req.NoError(err)
	req.False(got.IsApproved)

	got, err = l.ToggleApproval(q.ID, nil)
	req.NoError(err)
	req.True(got.IsApproved)
}

func TestLedger_Highlight_SingleInRoom(t *testing.T) {
	req := require.New(t)
	l := newLedger(Options{})

	q1, err := l.Submit(uuid.New(), "first")
	req.NoError(err)
	q2, err := l.Submit(uuid.New(), "second")
	req.NoError(err)

	change, err := l.Highlight(&q1.ID)
	req.NoError(err)
	req.Nil(change.Previous)
	req.False(change.Moved())

	// When the highlight moves to another question
	change, err = l.Highlight(&q2.ID)
	req.NoError(err)

	// Then the change reports both questions
	req.True(change.Moved())
	req.Equal(q1.ID, change.Previous.ID)
	req.False(change.Previous.IsHighlighted)
	req.Equal(q2.ID, change.Current.ID)
	req.True(change.Current.IsHighlighted)

	highlighted := 0
	for _, q := range l.Ranked() {
		if q.IsHighlighted {
			highlighted++
			req.Equal(q2.ID, q.ID)
		}
	}
	req.Equal(1, highlighted)

	// When the highlight is cleared
	change, err = l.Highlight(nil)
	req.NoError(err)
	req.Nil(change.Current)
	req.Equal(q2.ID, change.Previous.ID)
	req.False(change.Previous.IsHighlighted)

	// Then clearing again has nothing to change
	change, err = l.Highlight(nil)
	req.NoError(err)
	req.Nil(change.Current)
	req.Nil(change.Previous)

	missing := uuid.New()
	_, err = l.Highlight(&missing)
	req.ErrorIs(err, domain.ErrNotFound)
}

func TestLedger_Ranked_HighlightedFirst(t *testing.T) {
	req := require.New(t)
	l := newLedger(Options{})

	popular, err := l.Submit(uuid.New(), "popular")
	req.NoError(err)
	quiet, err := l.Submit(uuid.New(), "quiet")
	req.NoError(err)

	for range 5 {
		_, err = l.Vote(popular.ID, uuid.New())
		req.NoError(err)
	}

	_, err = l.Highlight(&quiet.ID)
	req.NoError(err)

	ranked := l.Ranked()
	req.Len(ranked, 2)
	req.Equal(quiet.ID, ranked[0].ID)
	req.Equal(popular.ID, ranked[1].ID)
}

func TestLedger_Ranked_TieBreakNewestFirst(t *testing.T) {
	req := require.New(t)
	l := newLedger(Options{})

	// Given two questions created at t1 < t2 with 3 votes each
	older, err := l.Submit(uuid.New(), "t1")
	req.NoError(err)
	newer, err := l.Submit(uuid.New(), "t2")
	req.NoError(err)
	req.True(older.CreatedAt.Before(newer.CreatedAt))

	for range 3 {
		_, err = l.Vote(older.ID, uuid.New())
		req.NoError(err)
		_, err = l.Vote(newer.ID, uuid.New())
		req.NoError(err)
	}

	// Then the later question ranks first
	ranked := l.Ranked()
	req.Equal(newer.ID, ranked[0].ID)
	req.Equal(older.ID, ranked[1].ID)

	// And more votes beat recency
	_, err = l.Vote(older.ID, uuid.New())
	req.NoError(err)
	ranked = l.Ranked()
	req.Equal(older.ID, ranked[0].ID)
}

func TestLedger_Ranked_ConvergesRegardlessOfVoteOrder(t *testing.T) {
	req := require.New(t)
	l := newLedger(Options{})

	q1, err := l.Submit(uuid.New(), "one")
	req.NoError(err)
	q2, err := l.Submit(uuid.New(), "two")
	req.NoError(err)

	v1, v2, v3 := uuid.New(), uuid.New(), uuid.New()
	votes := []struct{ q, v uuid.UUID }{{q1.ID, v1}, {q2.ID, v2}, {q1.ID, v3}, {q2.ID, v1}, {q1.ID, v1}}

	// Given the votes applied in order
	l.Begin()
	for _, vote := range votes {
		_, err = l.Vote(vote.q, vote.v)
		req.NoError(err)
	}
	forward := l.Ranked()
	l.Rollback()

	// When the same votes are applied in reverse
	for i := len(votes) - 1; i >= 0; i-- {
		_, err = l.Vote(votes[i].q, votes[i].v)
		req.NoError(err)
	}

	// Then the ranking is the same
	req.Equal(forward, l.Ranked())
}

func TestLedger_Rollback_RestoresTouchedQuestions(t *testing.T) {
	req := require.New(t)
	l := newLedger(Options{})
	voter := uuid.New()

	kept, err := l.Submit(uuid.New(), "kept")
	req.NoError(err)
	_, err = l.Vote(kept.ID, voter)
	req.NoError(err)
	before := l.Ranked()

	// Given a command that changes every part of the ledger
	l.Begin()
	added, err := l.Submit(uuid.New(), "added")
	req.NoError(err)
	_, err = l.Vote(kept.ID, voter)
	req.NoError(err)
	_, err = l.Vote(kept.ID, uuid.New())
	req.NoError(err)
	_, err = l.MarkAnswered(kept.ID)
	req.NoError(err)
	_, err = l.ToggleApproval(kept.ID, nil)
	req.NoError(err)
	_, err = l.Highlight(&added.ID)
	req.NoError(err)

	// When the command is rolled back
	l.Rollback()

	// Then the ledger is as it was before Begin
	req.Equal(before, l.Ranked())
	_, err = l.Get(added.ID)
	req.ErrorIs(err, domain.ErrNotFound)

	// And changes after Commit are not undone by a later rollback
	l.Begin()
	_, err = l.Vote(kept.ID, uuid.New())
	req.NoError(err)
	l.Commit()
	l.Rollback()

	got, err := l.Get(kept.ID)
	req.NoError(err)
	req.Equal(2, got.Votes)
}

func TestLedger_RankedFor_HidesVoters(t *testing.T) {
	req := require.New(t)
	l := newLedger(Options{})
	voter := models.Participant{UserID: uuid.New(), Role: models.RoleAudience}
	moderator := models.Participant{UserID: uuid.New(), Role: models.RoleSpeaker}

	q, err := l.Submit(uuid.New(), "question")
	req.NoError(err)
	_, err = l.Vote(q.ID, voter.UserID)
	req.NoError(err)

	audienceView := l.RankedFor(voter)
	req.Len(audienceView, 1)
	req.Nil(audienceView[0].VoterIDs)
	req.True(audienceView[0].Voted)

	moderatorView := l.RankedFor(moderator)
	req.Equal([]uuid.UUID{voter.UserID}, moderatorView[0].VoterIDs)
	req.False(moderatorView[0].Voted)
}
