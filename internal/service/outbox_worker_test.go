package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iyhunko/dapp-marketplace/internal/service"
	"github.com/iyhunko/dapp-marketplace/internal/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestOutboxWorker_Flush(t *testing.T) {
	ctx := context.Background()
	msg := sqs.ProductMessage{Action: sqs.ActionCreated, ProductID: 1, Name: "Chair", TxHash: "0x01"}

	t.Run("publishes pending notifications", func(t *testing.T) {
		// given
		outbox := service.NewOutbox(3)
		outbox.Enqueue(msg)
		publisher := new(MockPublisher)
		publisher.On("PublishProductMessage", ctx, msg).Return(nil).Once()
		worker := service.NewOutboxWorker(outbox, publisher, time.Second)

		// when
		worker.Flush(ctx)

		// then
		assert.Equal(t, 0, outbox.Len())
		publisher.AssertExpectations(t)
	})

	t.Run("keeps failed notifications for a retry", func(t *testing.T) {
		// given
		outbox := service.NewOutbox(3)
		outbox.Enqueue(msg)
		publisher := new(MockPublisher)
		publisher.On("PublishProductMessage", ctx, msg).Return(errors.New("queue unavailable")).Once()
		publisher.On("PublishProductMessage", ctx, msg).Return(nil).Once()
		worker := service.NewOutboxWorker(outbox, publisher, time.Second)

		// when
		worker.Flush(ctx)

		// then
		assert.Equal(t, 1, outbox.Len())

		// when
		worker.Flush(ctx)

		// then
		assert.Equal(t, 0, outbox.Len())
		publisher.AssertNumberOfCalls(t, "PublishProductMessage", 2)
	})

	t.Run("drops a notification after its last attempt", func(t *testing.T) {
		// given
		outbox := service.NewOutbox(2)
		outbox.Enqueue(msg)
		publisher := new(MockPublisher)
		publisher.On("PublishProductMessage", ctx, msg).Return(errors.New("queue unavailable"))
		worker := service.NewOutboxWorker(outbox, publisher, time.Second)

		// when
		worker.Flush(ctx)
		worker.Flush(ctx)
		worker.Flush(ctx)

		// then
		assert.Equal(t, 0, outbox.Len())
		publisher.AssertNumberOfCalls(t, "PublishProductMessage", 2)
	})

	t.Run("empty outbox publishes nothing", func(t *testing.T) {
		// given
		publisher := new(MockPublisher)
		worker := service.NewOutboxWorker(service.NewOutbox(0), publisher, time.Second)

		// when
		worker.Flush(ctx)

		// then
		publisher.AssertNotCalled(t, "PublishProductMessage", mock.Anything, mock.Anything)
	})
}

func TestOutboxWorker_Start(t *testing.T) {
	t.Run("flushes on stop", func(t *testing.T) {
		// given
		outbox := service.NewOutbox(0)
		outbox.Enqueue(sqs.ProductMessage{Action: sqs.ActionCreated, TxHash: "0x02"})
		publisher := new(MockPublisher)
		publisher.On("PublishProductMessage", mock.Anything, mock.Anything).Return(nil)
		worker := service.NewOutboxWorker(outbox, publisher, time.Hour)

		done := make(chan struct{})
		go func() {
			worker.Start(context.Background())
			close(done)
		}()

		// when
		worker.Stop()
		worker.Stop()

		// then
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("worker did not stop")
		}
		assert.Equal(t, 0, outbox.Len())
	})

	t.Run("publishes on every tick until the context ends", func(t *testing.T) {
		// given
		outbox := service.NewOutbox(0)
		publisher := new(MockPublisher)
		publisher.On("PublishProductMessage", mock.Anything, mock.Anything).Return(nil)
		worker := service.NewOutboxWorker(outbox, publisher, 10*time.Millisecond)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan struct{})
		go func() {
			worker.Start(ctx)
			close(done)
		}()

		// when
		outbox.Enqueue(sqs.ProductMessage{Action: sqs.ActionCreated, TxHash: "0x03"})

		// then
		assert.Eventually(t, func() bool { return outbox.Len() == 0 }, time.Second, 10*time.Millisecond)
		cancel()
		<-done
	})
}
