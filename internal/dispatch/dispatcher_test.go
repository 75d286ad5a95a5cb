package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/abdghn/youapp-be-test/internal/apperr"
	"github.com/abdghn/youapp-be-test/internal/models"
	"github.com/abdghn/youapp-be-test/internal/store"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []*models.Message
	err       error
	onPublish func(ctx context.Context, msg *models.Message) error
}

func (p *fakePublisher) Connect(context.Context) error { return nil }
func (p *fakePublisher) Close() error                  { return nil }

func (p *fakePublisher) Publish(ctx context.Context, msg *models.Message) error {
	if p.onPublish != nil {
		if err := p.onPublish(ctx, msg); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, msg)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type fixture struct {
	store *store.Memory
	pub   *fakePublisher
	d     *Dispatcher
	alice *models.User
	bob   *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: store.NewMemory(), pub: &fakePublisher{}}
	f.d = New(f.store, f.pub, time.Second)

	f.alice = &models.User{Username: "alice", Email: "alice@x.com", PasswordHash: "secret-hash"}
	require.NoError(t, f.store.CreateUser(ctx, f.alice))
	_, err := f.store.UpdateProfile(ctx, f.alice.ID, models.ProfileUpdate{Fullname: "Alice", Horoscope: "Leo", Zodiac: "Ox"})
	require.NoError(t, err)
	f.bob = &models.User{Username: "bob", Email: "bob@x.com", PasswordHash: "other-hash"}
	require.NoError(t, f.store.CreateUser(ctx, f.bob))
	return f
}

func TestSendPersistsThenPublishes(t *testing.T) {
	f := newFixture(t)
	f.pub.onPublish = func(ctx context.Context, msg *models.Message) error {
		inbox, err := f.store.ListForReceiver(ctx, msg.ReceiverID)
		require.NoError(t, err)
		require.Len(t, inbox, 1, "message must be stored before it is published")
		return nil
	}

	msg, err := f.d.Send(context.Background(), f.alice.ID, f.bob.ID, "hi")
	require.NoError(t, err)
	assert.True(t, primitive.IsValidObjectID(msg.ID))
	assert.Equal(t, f.alice.ID, msg.SenderID)
	assert.Equal(t, f.bob.ID, msg.ReceiverID)
	assert.Equal(t, "hi", msg.Content)
	assert.False(t, msg.CreatedAt.IsZero())

	require.Equal(t, 1, f.pub.count())
	assert.Equal(t, msg, f.pub.published[0])
}

func TestSendRejectsWithoutPublishing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.d.Send(ctx, f.alice.ID, primitive.NewObjectID().Hex(), "hi")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.d.Send(ctx, f.alice.ID, f.bob.ID, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.d.Send(ctx, f.alice.ID, "bob", "hi")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Zero(t, f.pub.count())
	inbox, err := f.d.GetMessages(ctx, f.bob.ID)
	require.NoError(t, err)
	assert.Empty(t, inbox)
}

type brokenMessages struct{ store.MessageStore }

func (brokenMessages) CreateMessage(context.Context, string, string, string) (*models.Message, error) {
	return nil, errors.New("connection reset")
}

func TestSendStoreFaultIsInternal(t *testing.T) {
	f := newFixture(t)
	d := New(brokenMessages{f.store}, f.pub, time.Second)
	var observed int
	d.Observe(func(*models.Message) { observed++ })

	msg, err := d.Send(context.Background(), f.alice.ID, f.bob.ID, "hi")
	require.Error(t, err)
	assert.Nil(t, msg)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, "internal server error", apperr.MessageOf(err))
	assert.Zero(t, f.pub.count())
	assert.Zero(t, observed)

	inbox, err := f.store.ListForReceiver(context.Background(), f.bob.ID)
	require.NoError(t, err)
	assert.Empty(t, inbox)
}

func TestSendSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t)
	f.pub.err = apperr.PublishUnavailable(errors.New("connection refused"), "dial broker")

	msg, err := f.d.Send(context.Background(), f.alice.ID, f.bob.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.Content)
	assert.False(t, f.d.QueueHealthy())

	inbox, err := f.d.GetMessages(context.Background(), f.bob.ID)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, msg.ID, inbox[0].ID)

	f.pub.mu.Lock()
	f.pub.err = nil
	f.pub.mu.Unlock()
	_, err = f.d.Send(context.Background(), f.alice.ID, f.bob.ID, "again")
	require.NoError(t, err)
	assert.True(t, f.d.QueueHealthy())
}

func TestSendBoundsSlowPublish(t *testing.T) {
	f := newFixture(t)
	f.d = New(f.store, f.pub, 50*time.Millisecond)
	f.pub.onPublish = func(ctx context.Context, _ *models.Message) error {
		<-ctx.Done()
		return ctx.Err()
	}

	start := time.Now()
	msg, err := f.d.Send(context.Background(), f.alice.ID, f.bob.ID, "hi")
	require.NoError(t, err)
	assert.NotNil(t, msg)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSendPublishesDespiteCallerCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.pub.onPublish = func(pctx context.Context, _ *models.Message) error {
		cancel()
		return pctx.Err()
	}

	_, err := f.d.Send(ctx, f.alice.ID, f.bob.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, f.pub.count())
}

func TestObserversRunAfterSend(t *testing.T) {
	f := newFixture(t)
	var seen []string
	f.d.Observe(func(msg *models.Message) { seen = append(seen, msg.Content) })

	_, err := f.d.Send(context.Background(), f.alice.ID, f.bob.ID, "hi")
	require.NoError(t, err)
	_, err = f.d.Send(context.Background(), f.alice.ID, f.bob.ID, "")
	require.Error(t, err)

	assert.Equal(t, []string{"hi"}, seen)
}

func TestAliceMessagesBob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.d.Send(ctx, f.alice.ID, f.bob.ID, "hi")
	require.NoError(t, err)

	inbox, err := f.d.GetMessages(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, "hi", inbox[0].Content)
	assert.Equal(t, &models.SenderProfile{ID: f.alice.ID, Fullname: "Alice", Horoscope: "Leo", Zodiac: "Ox"}, inbox[0].Sender)

	aliceInbox, err := f.d.GetMessages(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Empty(t, aliceInbox)
}
