/*
Package event provides the pub/sub event bus of the tool runtime.

Publishers emit events without knowing who listens. Direct subscribers
receive the typed Event value; every event is also mirrored as a JSON
message on a watermill gochannel topic, which is what the server's SSE
endpoint streams to remote clients.

# Event Types

Session Events:
  - session.created: a session was created (SessionCreatedData)
  - session.closed: a session was deleted and marked closed (SessionClosedData)

Tool Events:
  - tool.invoked: an invocation passed validation and permission checks (ToolInvokedData)
  - tool.completed: an invocation finished with any outcome (ToolCompletedData)

File Events:
  - file.edited: a mutating tool committed a file (FileEditedData)

# Basic Usage

	event.Publish(event.Event{
		Type: event.SessionCreated,
		Data: event.SessionCreatedData{Info: session},
	})

	unsub := event.Subscribe(event.FileEdited, func(e event.Event) {
		data := e.Data.(event.FileEditedData)
		fmt.Println("edited", data.File)
	})
	defer unsub()

Publish calls each subscriber in its own goroutine; PublishSync calls them
in order before returning. Tests that need deterministic delivery use
PublishSync or a private bus from NewBus.

# Streaming

	msgs, err := event.Stream(ctx)
	for msg := range msgs {
		w.Write(msg.Payload)
		msg.Ack()
	}

The stream channel closes when ctx is cancelled or the bus is closed.
*/
package event
