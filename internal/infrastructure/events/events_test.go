package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subj)
	f.payloads = append(f.payloads, data)
	return nil
}

func TestNATSPublisher_SubjectPerListing(t *testing.T) {
	conn := &fakeConn{}
	p := &NATSPublisher{Conn: conn}
	id := uuid.New()

	require.NoError(t, p.Publish(context.Background(), NewEnvelope(SubjectBidPlaced, id, map[string]string{"amount": "60"})))
	require.Len(t, conn.subjects, 1)
	assert.Equal(t, SubjectBidPlaced+"."+id.String(), conn.subjects[0])

	var env Envelope
	require.NoError(t, json.Unmarshal(conn.payloads[0], &env))
	assert.Equal(t, id.String(), env.ListingID)
	assert.NotEmpty(t, env.EventID)
}

func TestRedisPublisher_DeliversToSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, SubjectAlertDue)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	p := &RedisPublisher{Client: rdb}
	require.NoError(t, p.Publish(ctx, NewEnvelope(SubjectAlertDue, uuid.Nil, []string{"a"})))

	select {
	case msg := <-sub.Channel():
		assert.Equal(t, SubjectAlertDue, msg.Channel)
		assert.Contains(t, msg.Payload, `"subject":"marketplace.alerts.due"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

func TestFanout_JoinsErrors(t *testing.T) {
	rec := &Recorder{}
	bad := &NATSPublisher{Conn: &fakeConn{err: errors.New("down")}}
	f := Fanout{rec, nil, bad}

	err := f.Publish(context.Background(), NewEnvelope(SubjectJobAssigned, uuid.New(), nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Equal(t, []string{SubjectJobAssigned}, rec.Subjects())
}

func TestEmit_SwallowsErrors(t *testing.T) {
	bad := &NATSPublisher{Conn: &fakeConn{err: errors.New("down")}}
	Emit(context.Background(), bad, NewEnvelope(SubjectJobStatus, uuid.New(), nil))
	Emit(context.Background(), nil, NewEnvelope(SubjectJobStatus, uuid.New(), nil))
}
