package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

func TestMemoryPublisherFiltersAndLimits(t *testing.T) {
	pub := NewMemoryPublisher(2)
	contract := common.HexToAddress("0xFEE")
	ctx := context.Background()

	_ = pub.Publish(ctx, New(contract, "FEE_COLLECTED", map[string]string{"amount": "1"}))
	_ = pub.Publish(ctx, New(contract, "FEE_UPDATED", nil), New(contract, "FEE_COLLECTED", map[string]string{"amount": "2"}))

	all := pub.Events("")
	if len(all) != 2 {
		t.Fatalf("expected limit to keep 2 events, got %d", len(all))
	}
	collected := pub.Events("FEE_COLLECTED")
	if len(collected) != 1 || collected[0].Attributes["amount"] != "2" {
		t.Fatalf("unexpected filtered events: %+v", collected)
	}
}

func TestNewAssignsIdentity(t *testing.T) {
	a := New(common.Address{}, "POOL_FUNDED", nil)
	b := New(common.Address{}, "POOL_FUNDED", nil)
	if a.ID == uuid.Nil || a.ID == b.ID {
		t.Fatalf("events must carry distinct ids")
	}
	if a.Timestamp.IsZero() {
		t.Fatalf("timestamp not set")
	}
}

func TestToPublishing(t *testing.T) {
	ev := New(common.HexToAddress("0x01"), "REWARD_DISTRIBUTED", map[string]string{"recipient": "0x02"})
	msg, err := toPublishing(ev)
	if err != nil {
		t.Fatalf("to publishing: %v", err)
	}
	if msg.Type != "REWARD_DISTRIBUTED" || msg.MessageId != ev.ID.String() || msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("unexpected message headers: %+v", msg)
	}
	var decoded Event
	if err := json.Unmarshal(msg.Body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.ID != ev.ID || decoded.Attributes["recipient"] != "0x02" {
		t.Fatalf("unexpected body: %+v", decoded)
	}
}

func TestRedisPublisher(t *testing.T) {
	addr := os.Getenv("RESOLVER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("RESOLVER_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	list := "resolver-test:events:" + uuid.NewString()
	pub := NewRedisPublisherWithClient(client, RedisConfig{List: list, MaxLen: 10})
	defer pub.Close()
	defer client.Del(ctx, list)

	ev := New(common.HexToAddress("0x01"), "FEES_WITHDRAWN", nil)
	if err := pub.Publish(ctx, ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	raw, err := client.LIndex(ctx, list, 0).Bytes()
	if err != nil {
		t.Fatalf("lindex: %v", err)
	}
	var got Event
	if err := json.Unmarshal(raw, &got); err != nil || got.ID != ev.ID {
		t.Fatalf("unexpected stored event: %s %v", raw, err)
	}
}
