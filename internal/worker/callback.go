package worker

import (
	"context"

	"github.com/shl518/vchat/internal/vchat"
	"github.com/shl518/vchat/internal/vchat/prompt"
)

// StreamOptions are the callbacks of RequestChatStream.
type StreamOptions struct {
	// OnMessage receives the current response; done is true exactly once,
	// on normal completion or chunk timeout.
	OnMessage func(message string, done bool)

	// OnError receives request failures. statusCode is 0 unless the worker
	// answered with a non-2xx status.
	OnError func(err error, statusCode int)

	// OnController receives the cancel handle before the first chunk is read.
	OnController func(cancel context.CancelFunc)
}

// RequestChatStream streams a reply to messages and reports it through the
// callbacks. It blocks until the stream ends. Assistant messages are kept
// in the prompt.
func RequestChatStream(ctx context.Context, client *Client, messages []vchat.Message, model vchat.ModelConfig, opts StreamOptions) {
	req := prompt.MakeRequestParam(messages, model, prompt.Options{FilterBot: false})

	stream := client.Open(ctx, req, OpenOptions{OnController: opts.OnController})
	defer stream.Close()

	for {
		ev, err := stream.Recv()
		if err != nil {
			return
		}
		switch ev.Type {
		case EventText:
			if opts.OnMessage != nil {
				opts.OnMessage(ev.Text, false)
			}
		case EventDone:
			if opts.OnMessage != nil {
				opts.OnMessage(ev.Text, true)
			}
		case EventError:
			if opts.OnError != nil {
				opts.OnError(ev.Err, ev.StatusCode)
			}
		}
	}
}
