package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showroom-popup-builder/internal/model"
	"showroom-popup-builder/internal/storage"
	"showroom-popup-builder/internal/templates"
)

type stubGateway struct {
	saveErr error
	saves   int
}

func (g *stubGateway) Load(context.Context, model.ObjectTarget) (*model.StoredTemplate, error) {
	return nil, storage.ErrNotFound
}

func (g *stubGateway) Save(context.Context, storage.SaveRequest) error {
	g.saves++
	return g.saveErr
}

type failingPublisher struct{ calls int }

func (p *failingPublisher) Publish(context.Context, SavedEvent) error {
	p.calls++
	return errors.New("broker unreachable")
}

func (p *failingPublisher) Close() error { return nil }

func saveRequest(t *testing.T) storage.SaveRequest {
	t.Helper()
	cfg := templates.Contact{}.DefaultConfig()
	raw, err := model.EncodeConfig(cfg)
	require.NoError(t, err)
	a, err := templates.Contact{}.GenerateArtifact("c1_obj", cfg, time.Now())
	require.NoError(t, err)
	return storage.SaveRequest{
		Target:         model.ObjectTarget{ID: "c1_obj", SpaceSlug: "atlantis"},
		TemplateType:   model.TemplateContact,
		TemplateConfig: raw,
		Artifact:       a,
	}
}

func TestNotifyingGatewayPublishesAfterSave(t *testing.T) {
	bus := &Memory{}
	var got []SavedEvent
	require.NoError(t, bus.Subscribe(context.Background(), func(e SavedEvent) { got = append(got, e) }))

	inner := &stubGateway{}
	g := Notify(inner, bus, nil)
	require.NoError(t, g.Save(context.Background(), saveRequest(t)))

	require.Len(t, got, 1)
	assert.Equal(t, "atlantis", got[0].SpaceSlug)
	assert.Equal(t, "c1_obj", got[0].ObjectName)
	assert.Equal(t, "contact", got[0].TemplateType)
	assert.Equal(t, model.ObjectTarget{ID: "c1_obj", SpaceSlug: "atlantis"}, got[0].Target())

	inner.saveErr = errors.New("rejected")
	assert.Error(t, g.Save(context.Background(), saveRequest(t)))
	assert.Len(t, got, 1, "failed saves are not announced")

	_, err := g.Load(context.Background(), model.ObjectTarget{ID: "x", SpaceSlug: "atlantis"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPublishFailureDoesNotFailSave(t *testing.T) {
	inner := &stubGateway{}
	p := &failingPublisher{}
	g := Notify(inner, p, nil)

	require.NoError(t, g.Save(context.Background(), saveRequest(t)))
	assert.Equal(t, 1, inner.saves)
	assert.Equal(t, 1, p.calls)
	assert.Same(t, inner, g.(*NotifyingGateway).Unwrap())

	assert.Same(t, inner, Notify(inner, nil, nil))
}

func TestDecode(t *testing.T) {
	e := SavedEvent{SpaceSlug: "atlantis", ObjectName: "c1_obj", TemplateType: "info", SavedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	data, err := e.encode()
	require.NoError(t, err)
	back, err := decode(data)
	require.NoError(t, err)
	assert.Equal(t, e, back)

	_, err = decode([]byte(`{"space_slug":"atlantis"}`))
	assert.Error(t, err)
	_, err = decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestOpenDrivers(t *testing.T) {
	p, err := OpenPublisher(Options{}, nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, p)

	_, err = OpenPublisher(Options{Driver: "carrier-pigeon"}, nil)
	assert.Error(t, err)
	_, err = OpenPublisher(Options{Driver: DriverKafka}, nil)
	assert.Error(t, err, "kafka needs brokers")
	_, err = OpenSubscriber(Options{Driver: DriverMQTT}, nil)
	assert.Error(t, err, "mqtt needs a broker")

	kp, err := OpenPublisher(Options{Driver: DriverKafka, Brokers: []string{"localhost:9092"}}, nil)
	require.NoError(t, err)
	assert.NoError(t, kp.Close())
}
