//go:build integration

package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bibbank/microfinance/internal/application/dto"
	pkgkafka "github.com/bibbank/microfinance/pkg/kafka"
	"github.com/bibbank/microfinance/pkg/testutil"
)

type chanRecorder chan dto.RecordMilestoneRequest

func (c chanRecorder) RecordMilestone(_ context.Context, req dto.RecordMilestoneRequest) (dto.LoanResponse, error) {
	c <- req
	return dto.LoanResponse{}, nil
}

func TestMilestoneConsumer_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	kc := testutil.NewKafkaContainer(ctx, t)
	cfg := pkgkafka.Config{Brokers: kc.Brokers, ClientID: "loand-test", ConsumerGroup: "loand-test"}
	const topic = "microfinance.milestones.verified"

	producer, err := pkgkafka.NewProducer(cfg)
	require.NoError(t, err)
	defer producer.Close()

	msg := pkgkafka.Message{
		Key:   []byte("loan-1"),
		Value: []byte(`{"event_id":"m-1","tenant_id":"tenant-1","loan_id":"loan-1","tranche_sequence":1,"status":"VERIFIED","verified_by":"inspector-7"}`),
	}
	// The first write may race topic auto-creation.
	require.Eventually(t, func() bool {
		return producer.Publish(ctx, topic, msg) == nil
	}, 30*time.Second, time.Second)

	recorded := make(chanRecorder, 4)
	consumer, err := pkgkafka.NewConsumer(cfg, topic, NewMilestoneHandler(recorded, discard).Handle, pkgkafka.ConsumerOptions{}, discard)
	require.NoError(t, err)
	defer consumer.Close()

	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = consumer.Start(consumeCtx) }()

	select {
	case req := <-recorded:
		assert.Equal(t, "tenant-1", req.TenantID)
		assert.Equal(t, "loan-1", req.LoanID)
		assert.Equal(t, 1, req.Sequence)
		assert.Equal(t, "VERIFIED", req.Status)
		assert.Equal(t, "inspector-7", req.VerifiedBy)
	case <-ctx.Done():
		t.Fatal("milestone was not consumed")
	}
}
