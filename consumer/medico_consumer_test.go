package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinica-medicos/models"
	"clinica-medicos/utils"
)

// Compile-time check to ensure MockElasticsearch implements ElasticsearchClient
var _ utils.ElasticsearchClient = (*MockElasticsearch)(nil)

type MockElasticsearch struct {
	mu      sync.Mutex
	docs    map[string]interface{}
	failing error
}

func newMockElasticsearch() *MockElasticsearch {
	return &MockElasticsearch{docs: make(map[string]interface{})}
}

func (m *MockElasticsearch) IndexDocument(_ context.Context, index, id string, document interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return m.failing
	}
	m.docs[index+"/"+id] = document
	return nil
}

func (m *MockElasticsearch) DeleteDocument(_ context.Context, index, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing != nil {
		return m.failing
	}
	delete(m.docs, index+"/"+id)
	return nil
}

func (m *MockElasticsearch) Close() error { return nil }

func (m *MockElasticsearch) get(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[key]
	return d, ok
}

type countingInvalidator struct{ calls int32 }

func (c *countingInvalidator) Invalidate(context.Context) error {
	atomic.AddInt32(&c.calls, 1)
	return nil
}

// chanReader feeds messages from a channel and blocks until ctx is done.
type chanReader struct {
	msgs   chan kafka.Message
	closed int32
}

func (r *chanReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *chanReader) Close() error {
	atomic.StoreInt32(&r.closed, 1)
	return nil
}

func encode(t *testing.T, event string, m models.Medico) []byte {
	t.Helper()
	b, err := json.Marshal(models.NewMedicoEvent(event, m))
	require.NoError(t, err)
	return b
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestHandleMessage_IndexesAndDeletes(t *testing.T) {
	es := newMockElasticsearch()
	cache := &countingInvalidator{}
	c := NewMedicoConsumer(&chanReader{}, es, cache, "medicos", quietLogger())
	ctx := context.Background()

	medico := models.Medico{ID: 7, FirstName: "Ana", LastName: "Lopez", Specialty: "pediatría", AttendanceDays: models.Days{"Lunes"}}

	require.NoError(t, c.HandleMessage(ctx, encode(t, models.EventMedicoCreated, medico)))
	doc, ok := es.get("medicos/7")
	require.True(t, ok)
	assert.Equal(t, "Ana", doc.(models.Medico).FirstName)

	medico.InsurancePlans = "OSDE"
	require.NoError(t, c.HandleMessage(ctx, encode(t, models.EventMedicoUpdated, medico)))
	doc, _ = es.get("medicos/7")
	assert.Equal(t, "OSDE", doc.(models.Medico).InsurancePlans)

	require.NoError(t, c.HandleMessage(ctx, encode(t, models.EventMedicoDeleted, medico)))
	_, ok = es.get("medicos/7")
	assert.False(t, ok)

	assert.Equal(t, int32(3), atomic.LoadInt32(&cache.calls))
}

func TestHandleMessage_Rejects(t *testing.T) {
	c := NewMedicoConsumer(&chanReader{}, newMockElasticsearch(), nil, "medicos", quietLogger())
	ctx := context.Background()

	assert.Error(t, c.HandleMessage(ctx, []byte("not json")))
	assert.Error(t, c.HandleMessage(ctx, encode(t, "medico_renamed", models.Medico{ID: 1})))
	assert.Error(t, c.HandleMessage(ctx, encode(t, models.EventMedicoCreated, models.Medico{})))
}

func TestHandleMessage_ElasticsearchFailureStillInvalidates(t *testing.T) {
	es := newMockElasticsearch()
	es.failing = errors.New("cluster red")
	cache := &countingInvalidator{}
	c := NewMedicoConsumer(&chanReader{}, es, cache, "medicos", quietLogger())

	err := c.HandleMessage(context.Background(), encode(t, models.EventMedicoCreated, models.Medico{ID: 3}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cluster red")
	assert.Equal(t, int32(1), atomic.LoadInt32(&cache.calls))
}

func TestHandleMessage_WithoutElasticsearch(t *testing.T) {
	cache := &countingInvalidator{}
	c := NewMedicoConsumer(&chanReader{}, nil, cache, "medicos", quietLogger())

	require.NoError(t, c.HandleMessage(context.Background(), encode(t, models.EventMedicoDeleted, models.Medico{ID: 3})))
	assert.Equal(t, int32(1), atomic.LoadInt32(&cache.calls))
}

func TestConsumer_StartStop(t *testing.T) {
	reader := &chanReader{msgs: make(chan kafka.Message, 1)}
	es := newMockElasticsearch()
	c := NewMedicoConsumer(reader, es, nil, "medicos", quietLogger())

	c.Start(context.Background())
	reader.msgs <- kafka.Message{Value: encode(t, models.EventMedicoCreated, models.Medico{ID: 9, FirstName: "Eva"})}

	assert.Eventually(t, func() bool {
		_, ok := es.get("medicos/9")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	c.Stop()
	c.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&reader.closed))
}
