// Package ledger хранит вопросы одной комнаты. Ledger не потокобезопасен:
// им владеет горутина комнаты, все изменения проходят через неё.
package ledger

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/qrave1/StageLive/internal/domain"
	"github.com/qrave1/StageLive/internal/domain/models"
)

type Options struct {
	// ModerationFirst - новые вопросы не одобрены до решения модератора
	ModerationFirst bool
	MaxTextLength   int
	Now             func() time.Time
}

type record struct {
	id        uuid.UUID
	authorID  uuid.UUID
	text      string
	voters    map[uuid.UUID]struct{}
	approved  bool
	answered  bool
	createdAt time.Time
}

type Ledger struct {
	roomID uuid.UUID
	opts   Options

	questions   map[uuid.UUID]*record
	highlighted uuid.UUID

	// undo - обратные операции текущей команды
	undo      []func()
	recording bool
}

// HighlightChange описывает смену подсветки: Current подсвечен после команды,
// Previous был подсвечен до нее. Любое из полей может быть nil.
type HighlightChange struct {
	Current  *models.Question
	Previous *models.Question
}

// Moved - подсветка перешла с одного вопроса на другой
func (c HighlightChange) Moved() bool {
	return c.Current != nil && c.Previous != nil && c.Current.ID != c.Previous.ID
}

func New(roomID uuid.UUID, opts Options) *Ledger {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Ledger{
		roomID:    roomID,
		opts:      opts,
		questions: make(map[uuid.UUID]*record),
	}
}

// Submit создает вопрос без голосов
func (l *Ledger) Submit(authorID uuid.UUID, text string) (models.Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Question{}, fmt.Errorf("%w: question text is empty", domain.ErrValidation)
	}

	if l.opts.MaxTextLength > 0 && utf8.RuneCountInString(text) > l.opts.MaxTextLength {
		return models.Question{}, fmt.Errorf("%w: question text exceeds %d characters", domain.ErrValidation, l.opts.MaxTextLength)
	}

	r := &record{
		id:        uuid.New(),
		authorID:  authorID,
		text:      text,
		voters:    make(map[uuid.UUID]struct{}),
		approved:  !l.opts.ModerationFirst,
		createdAt: l.opts.Now(),
	}
	l.remember(func() { delete(l.questions, r.id) })
	l.questions[r.id] = r

	return l.view(r), nil
}

// Vote переключает голос: повторный вызов тем же голосующим снимает голос
func (l *Ledger) Vote(questionID, voterID uuid.UUID) (models.Question, error) {
	r, err := l.get(questionID)
	if err != nil {
		return models.Question{}, err
	}

	_, voted := r.voters[voterID]
	l.remember(func() {
		if voted {
			r.voters[voterID] = struct{}{}
		} else {
			delete(r.voters, voterID)
		}
	})

	if voted {
		delete(r.voters, voterID)
	} else {
		r.voters[voterID] = struct{}{}
	}

	return l.view(r), nil
}

// MarkAnswered необратим, повторный вызов ничего не меняет
func (l *Ledger) MarkAnswered(questionID uuid.UUID) (models.Question, error) {
	r, err := l.get(questionID)
	if err != nil {
		return models.Question{}, err
	}

	answered := r.answered
	l.remember(func() { r.answered = answered })
	r.answered = true

	return l.view(r), nil
}

// ToggleApproval выставляет флаг одобрения; при approve == nil инвертирует его
func (l *Ledger) ToggleApproval(questionID uuid.UUID, approve *bool) (models.Question, error) {
	r, err := l.get(questionID)
	if err != nil {
		return models.Question{}, err
	}

	approved := r.approved
	l.remember(func() { r.approved = approved })

	if approve != nil {
		r.approved = *approve
	} else {
		r.approved = !r.approved
	}

	return l.view(r), nil
}

// Highlight делает вопрос единственным подсвеченным в комнате. nil снимает подсветку.
func (l *Ledger) Highlight(questionID *uuid.UUID) (HighlightChange, error) {
	var target *record
	if questionID != nil {
		r, err := l.get(*questionID)
		if err != nil {
			return HighlightChange{}, err
		}
		target = r
	}

	prevID := l.highlighted
	l.remember(func() { l.highlighted = prevID })

	l.highlighted = uuid.Nil
	if target != nil {
		l.highlighted = target.id
	}

	var change HighlightChange
	if prev, ok := l.questions[prevID]; ok {
		q := l.view(prev)
		change.Previous = &q
	}
	if target != nil {
		q := l.view(target)
		change.Current = &q
	}

	return change, nil
}

func (l *Ledger) Get(questionID uuid.UUID) (models.Question, error) {
	r, err := l.get(questionID)
	if err != nil {
		return models.Question{}, err
	}

	return l.view(r), nil
}

func (l *Ledger) Len() int {
	return len(l.questions)
}

// Ranked строит упорядоченный список: подсвеченный вопрос, затем по голосам, затем новые выше.
// Порядок вычисляется заново при каждом чтении.
func (l *Ledger) Ranked() []models.Question {
	list := lo.MapToSlice(l.questions, func(_ uuid.UUID, r *record) models.Question {
		return l.view(r)
	})

	Rank(list)

	return list
}

// RankedFor возвращает рейтинг, видимый участнику, в его представлении
func (l *Ledger) RankedFor(p models.Participant) []models.Question {
	return lo.FilterMap(l.Ranked(), func(q models.Question, _ int) (models.Question, bool) {
		if !q.VisibleTo(p) {
			return models.Question{}, false
		}

		return q.ViewFor(p), true
	})
}

// Rank сортирует вопросы на месте
func Rank(list []models.Question) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]

		if a.IsHighlighted != b.IsHighlighted {
			return a.IsHighlighted
		}

		if a.Votes != b.Votes {
			return a.Votes > b.Votes
		}

		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}

		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
}

// Begin начинает запись изменений одной команды
func (l *Ledger) Begin() {
	l.undo = l.undo[:0]
	l.recording = true
}

// Commit фиксирует изменения команды
func (l *Ledger) Commit() {
	clear(l.undo)
	l.undo = l.undo[:0]
	l.recording = false
}

// Rollback отменяет изменения, сделанные после Begin
func (l *Ledger) Rollback() {
	for i := len(l.undo) - 1; i >= 0; i-- {
		l.undo[i]()
	}

	l.Commit()
}

// remember запоминает обратную операцию до изменения состояния
func (l *Ledger) remember(fn func()) {
	if l.recording {
		l.undo = append(l.undo, fn)
	}
}

func (l *Ledger) get(questionID uuid.UUID) (*record, error) {
	r, ok := l.questions[questionID]
	if !ok {
		return nil, fmt.Errorf("%w: question %s", domain.ErrNotFound, questionID)
	}

	return r, nil
}

func (l *Ledger) view(r *record) models.Question {
	voters := lo.Keys(r.voters)
	sort.Slice(voters, func(i, j int) bool {
		return bytes.Compare(voters[i][:], voters[j][:]) < 0
	})

	return models.Question{
		ID:            r.id,
		RoomID:        l.roomID,
		AuthorID:      r.authorID,
		Text:          r.text,
		Votes:         len(r.voters),
		VoterIDs:      voters,
		IsApproved:    r.approved,
		IsHighlighted: r.id == l.highlighted,
		IsAnswered:    r.answered,
		CreatedAt:     r.createdAt,
	}
}
