package pubsub

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// MemoryProvider serves every exchange and queue from one in-process
// channel pub/sub. Topics are shared across exchanges.
type MemoryProvider struct {
	ps *gochannel.GoChannel
}

func NewMemoryProvider(logger watermill.LoggerAdapter) *MemoryProvider {
	return &MemoryProvider{
		ps: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger),
	}
}

func (p *MemoryProvider) Publisher(string) (message.Publisher, error) { return p.ps, nil }

func (p *MemoryProvider) Subscriber(string, string) (message.Subscriber, error) { return p.ps, nil }

func (p *MemoryProvider) Close() error { return p.ps.Close() }
