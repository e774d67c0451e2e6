// Package main provides a terminal client for the a2ui WebSocket server and
// a push command for the RPC endpoint.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"

	"github.com/xiaot623/gogo/a2ui/internal/protocol"
	"github.com/xiaot623/gogo/a2ui/internal/render/term"
	"github.com/xiaot623/gogo/a2ui/internal/surface"
	"github.com/xiaot623/gogo/a2ui/internal/transport/rpc"
)

// Client represents a WebSocket client.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	surfaceID string
	engine    *surface.Engine
	renderer  *term.Renderer
	out       io.Writer

	mu        sync.Mutex
	frame     term.Frame
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new client and connects to the server.
func NewClient(addr, surfaceID string, width int, out io.Writer) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn:      conn,
		surfaceID: surfaceID,
		engine:    surface.NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil))),
		renderer:  term.New(width),
		out:       out,
		done:      make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// SendHello sends a hello frame and waits for hello_ack.
func (c *Client) SendHello(sessionID, apiKey, language string) error {
	msg := protocol.HelloFrame{
		BaseFrame: protocol.BaseFrame{
			Type:      protocol.TypeHello,
			Ts:        time.Now().UnixMilli(),
			SessionID: sessionID,
		},
		APIKey:   apiKey,
		Language: language,
		ClientMeta: map[string]string{
			"client": "a2ui-cli",
		},
	}

	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	// Wait for hello_ack
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}

	var base protocol.BaseFrame
	if err := json.Unmarshal(data, &base); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}

	if base.Type == protocol.TypeError {
		var errMsg protocol.ErrorFrame
		json.Unmarshal(data, &errMsg)
		return fmt.Errorf("hello failed: %s - %s", errMsg.Code, errMsg.Message)
	}

	if base.Type != protocol.TypeHelloAck {
		return fmt.Errorf("expected hello_ack, got: %s", base.Type)
	}

	c.sessionID = base.SessionID
	return nil
}

// SendChat sends free text.
func (c *Client) SendChat(message string) error {
	return c.conn.WriteJSON(protocol.ChatFrame{
		BaseFrame: c.base(protocol.TypeChat),
		Message:   message,
	})
}

// SendAction sends the action of an activated button.
func (c *Client) SendAction(name string) error {
	return c.conn.WriteJSON(protocol.ActionFrame{
		BaseFrame:  c.base(protocol.TypeAction),
		ActionName: name,
	})
}

func (c *Client) base(typ string) protocol.BaseFrame {
	return protocol.BaseFrame{
		Type:      typ,
		Ts:        time.Now().UnixMilli(),
		SessionID: c.sessionID,
		RequestID: fmt.Sprintf("req_%d", time.Now().UnixNano()),
	}
}

// Button returns the action of the numbered button on the current screen.
func (c *Client) Button(n int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame.Action(n)
}

// ReadMessages applies incoming a2ui frames and redraws the surface.
func (c *Client) ReadMessages() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}
			c.handle(data)
		}
	}
}

func (c *Client) handle(data []byte) {
	var base protocol.BaseFrame
	if err := json.Unmarshal(data, &base); err != nil {
		log.Printf("Unmarshal error: %v", err)
		return
	}

	switch base.Type {
	case protocol.TypeUI:
		var frame protocol.UIFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("Unmarshal error: %v", err)
			return
		}
		if !c.engine.ApplySequenced(c.surfaceID, frame.Seq, frame.Messages) {
			return
		}
		drawn := c.renderer.Render(c.engine.Render(c.surfaceID))
		c.mu.Lock()
		c.frame = drawn
		c.mu.Unlock()

		fmt.Fprintf(c.out, "\n%s\n", drawn.Text)
		if frame.AssistantText != "" {
			fmt.Fprintf(c.out, "\n%s\n", frame.AssistantText)
		}
		fmt.Fprint(c.out, "> ")

	case protocol.TypeError:
		var frame protocol.ErrorFrame
		json.Unmarshal(data, &frame)
		fmt.Fprintf(c.out, "\n[error] %s: %s\n> ", frame.Code, frame.Message)
	}
}

// command is one parsed line of user input.
type command struct {
	quit   bool
	button int
	text   string
}

// parseInput reads "/quit", "/N" for button N, or free text.
func parseInput(input string) (command, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return command{}, false
	}
	if input == "/quit" {
		return command{quit: true}, true
	}
	if rest, ok := strings.CutPrefix(input, "/"); ok {
		if n, err := strconv.Atoi(rest); err == nil {
			return command{button: n}, true
		}
	}
	return command{text: input}, true
}

func runChat(args []string) {
	fs := pflag.NewFlagSet("chat", pflag.ExitOnError)
	addr := fs.String("addr", "ws://localhost:8080/ws", "WebSocket server address")
	apiKey := fs.String("api-key", "", "API key for authentication")
	sessionID := fs.String("session", "", "Client session to resume")
	language := fs.StringP("lang", "l", "", "Preferred language")
	surfaceID := fs.String("surface", protocol.DefaultSurfaceID, "Surface to draw")
	width := fs.IntP("width", "w", 72, "Wrap width")
	fs.Parse(args)

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr, *surfaceID, *width, os.Stdout)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if err := client.SendHello(*sessionID, *apiKey, *language); err != nil {
		log.Fatalf("Hello failed: %v", err)
	}

	fmt.Printf("Session established: %s\n", client.sessionID)
	fmt.Println("Type a message, /N to press button N, /quit to exit.")

	go client.ReadMessages()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		fmt.Println("\nInterrupted")
		client.Close()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd, ok := parseInput(scanner.Text())
		if !ok {
			continue
		}
		switch {
		case cmd.quit:
			fmt.Println("Bye!")
			return
		case cmd.button > 0:
			name, ok := client.Button(cmd.button)
			if !ok {
				fmt.Printf("No button %d on this screen\n> ", cmd.button)
				continue
			}
			err = client.SendAction(name)
		default:
			err = client.SendChat(cmd.text)
		}
		if err != nil {
			log.Printf("Send error: %v", err)
		}
	}
}

func runPush(args []string) {
	fs := pflag.NewFlagSet("push", pflag.ExitOnError)
	addr := fs.String("rpc", "localhost:8092", "RPC server address")
	sessionID := fs.String("session", "", "Client session to push to")
	reply := fs.String("reply", "", "Assistant text shown with the view")
	language := fs.StringP("lang", "l", "", "Language of the view")
	stateFile := fs.StringP("file", "f", "-", "State JSON file, - for stdin")
	timeout := fs.Duration("timeout", 30*time.Second, "Call timeout")
	fs.Parse(args)

	if *sessionID == "" {
		log.Fatal("--session is required")
	}

	var (
		raw []byte
		err error
	)
	if *stateFile == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(*stateFile)
	}
	if err != nil {
		log.Fatalf("Failed to read state: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := rpc.NewClient(*addr).PushState(ctx, &rpc.PushStateRequest{
		SessionID: *sessionID,
		Reply:     *reply,
		Language:  *language,
		State:     raw,
	})
	if err != nil {
		log.Fatalf("Push failed: %v", err)
	}
	fmt.Printf("Pushed %s view (seq %d, delivered: %t)\n", resp.View, resp.Seq, resp.Delivered)
}

func main() {
	log.SetFlags(log.Ltime)

	args := os.Args[1:]
	if len(args) > 0 && args[0] == "push" {
		runPush(args[1:])
		return
	}
	if len(args) > 0 && args[0] == "chat" {
		args = args[1:]
	}
	runChat(args)
}
