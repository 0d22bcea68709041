package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dm-service/internal/archive"
	"dm-service/internal/connection"
	"dm-service/internal/history"
	"dm-service/internal/live"
	"dm-service/internal/models"
	"dm-service/internal/outbound"
	"dm-service/internal/presence"
	"dm-service/internal/session"
	"dm-service/internal/transport"
	"dm-service/internal/view"
)

var (
	baseURL = getEnv("RELAY_URL", "http://localhost:8083")
	reader  = bufio.NewReader(os.Stdin)
	client  = &http.Client{Timeout: 30 * time.Second}
)

type app struct {
	token    string
	state    *session.State
	manager  *connection.Manager
	tracker  *presence.Tracker
	stream   *live.Stream
	hist     *history.Store
	pipeline *outbound.Pipeline
	conv     *view.Conversation
	arch     *archive.Archive
	peers    []models.Peer
}

func main() {
	fmt.Println("Welcome to DM CLI")

	username := prompt("Username: ")
	userID, token, err := login(username)
	if err != nil {
		fmt.Printf("login failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Logged in as %s (id %d)\n", username, userID)

	a := &app{token: token, state: session.NewState(userID)}
	a.tracker = presence.NewTracker()
	a.stream = live.NewStream()
	a.hist = history.NewStore(history.NewHTTPFetcher(baseURL, token), userID)
	a.conv = view.NewConversation(a.hist, a.stream, a.state)

	if arch, err := openArchive(userID); err != nil {
		fmt.Printf("local archive disabled: %v\n", err)
	} else {
		a.arch = arch
		defer arch.Close()
	}

	endpoint := &transport.WebsocketEndpoint{URL: wsURL(baseURL)}
	a.manager = connection.NewManager(endpoint, token, connection.Handlers{
		OnStateChange: func(state connection.State, reason string) {
			if reason != "" {
				fmt.Printf("[connection: %s (%s)]\n", state, reason)
				return
			}
			fmt.Printf("[connection: %s]\n", state)
		},
		OnMessage: func(msg models.Message) {
			a.stream.Append(msg)
			a.archiveMessage(msg)
			if msg.SenderID == a.state.SelectedPeer() {
				fmt.Printf("<%d> %s\n", msg.SenderID, msg.Body)
			} else {
				fmt.Printf("[new message from %d]\n", msg.SenderID)
			}
		},
		OnRoster: func(peerIDs []int) {
			a.tracker.Replace(peerIDs)
		},
	})
	a.pipeline = outbound.NewPipeline(a.manager, a.stream, &httpRecorder{token: token, app: a}, userID)

	a.manager.Start()
	defer a.manager.Stop()

	for {
		a.mainMenu()
	}
}

func (a *app) mainMenu() {
	fmt.Println("\n=== Conversations ===")
	if err := a.loadPeers(); err != nil {
		fmt.Printf("failed to load peers: %v\n", err)
	}
	for i, p := range a.peers {
		marker := " "
		if a.tracker.IsOnline(p.ID) {
			marker = "*"
		}
		fmt.Printf("%d. %s %s\n", i+1, marker, p.Username)
	}
	fmt.Println("q. Quit")
	choice := prompt("> ")

	if choice == "q" {
		fmt.Println("Goodbye!")
		a.manager.Stop()
		os.Exit(0)
	}
	idx, err := strconv.Atoi(choice)
	if err != nil || idx < 1 || idx > len(a.peers) {
		fmt.Println("Invalid choice")
		return
	}
	a.openConversation(a.peers[idx-1])
}

func (a *app) openConversation(peer models.Peer) {
	a.state.SelectPeer(peer.ID)
	defer a.state.SelectPeer(0)

	if !a.hist.Loaded(peer.ID) {
		if _, _, err := a.conv.LoadOlder(context.Background()); err != nil {
			fmt.Printf("failed to load history: %v\n", err)
		}
	}
	a.render()
	fmt.Println("(/more older history, /retry resend failed, /archive offline copy, /back to leave)")

	for {
		line := prompt("")
		switch {
		case line == "/back":
			return
		case line == "/more":
			added, hasMore, err := a.conv.LoadOlder(context.Background())
			if err != nil {
				fmt.Printf("load more failed: %v\n", err)
				continue
			}
			fmt.Printf("[loaded %d older messages, more=%v]\n", added, hasMore)
			a.render()
		case line == "/retry":
			a.retryFailed(peer.ID)
		case line == "/archive":
			a.showArchive(peer.ID)
		case line == "":
			continue
		default:
			msg, err := a.pipeline.Send(peer.ID, line)
			if err != nil {
				fmt.Printf("send rejected: %v\n", err)
				continue
			}
			fmt.Printf("(pending %d)\n", msg.SentAt)
		}
	}
}

func (a *app) render() {
	msgs := a.conv.Messages()
	fmt.Printf("--- %d messages ---\n", len(msgs))
	for _, m := range msgs {
		suffix := ""
		if m.Delivery != "" && m.Delivery != models.DeliverySent {
			suffix = " (" + m.Delivery + ")"
		}
		fmt.Printf("<%d> %s%s\n", m.SenderID, m.Body, suffix)
	}
}

func (a *app) retryFailed(peerID int) {
	retried := 0
	for _, m := range a.stream.ForPeer(a.state.LocalID(), peerID) {
		if m.Delivery == models.DeliveryFailed {
			if err := a.pipeline.Retry(m.Key()); err != nil {
				fmt.Printf("retry rejected: %v\n", err)
				return
			}
			retried++
		}
	}
	fmt.Printf("[retried %d messages]\n", retried)
}

func (a *app) showArchive(peerID int) {
	if a.arch == nil {
		fmt.Println("local archive disabled")
		return
	}
	msgs, err := a.arch.Recent(a.state.LocalID(), peerID, 20)
	if err != nil {
		fmt.Printf("archive read failed: %v\n", err)
		return
	}
	fmt.Printf("--- %d archived ---\n", len(msgs))
	for _, m := range msgs {
		fmt.Printf("<%d> %s\n", m.SenderID, m.Body)
	}
}

func (a *app) archiveMessage(msg models.Message) {
	if a.arch == nil {
		return
	}
	if err := a.arch.Save(msg); err != nil {
		fmt.Printf("archive write failed: %v\n", err)
	}
}

func (a *app) loadPeers() error {
	req, err := http.NewRequest(http.MethodGet, baseURL+"/peers", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var body struct {
		Peers []models.Peer `json:"peers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return err
	}
	a.peers = body.Peers
	return nil
}

// httpRecorder persists acknowledged messages through the relay's REST API
// and mirrors them into the local archive.
type httpRecorder struct {
	token string
	app   *app
}

func (r *httpRecorder) Record(ctx context.Context, msg models.Message) error {
	payload, err := json.Marshal(map[string]any{
		"recipient_id":   msg.RecipientID,
		"body":           msg.Body,
		"attachment_url": msg.AttachmentURL,
		"sent_at":        msg.SentAt,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	r.app.archiveMessage(msg)
	return nil
}

func login(username string) (int, string, error) {
	payload, _ := json.Marshal(map[string]string{"username": username})
	resp, err := client.Post(baseURL+"/login", "application/json", bytes.NewReader(payload))
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var body struct {
		UserID int    `json:"user_id"`
		Token  string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, "", err
	}
	return body.UserID, body.Token, nil
}

func openArchive(userID int) (*archive.Archive, error) {
	dir := getEnv("DM_ARCHIVE_DIR", "")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".dm-cli")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return archive.Open(filepath.Join(dir, fmt.Sprintf("archive-%d.db", userID)))
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws"
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws"
	default:
		return base + "/ws"
	}
}

func prompt(label string) string {
	if label != "" {
		fmt.Print(label)
	}
	input, err := reader.ReadString('\n')
	if err != nil {
		os.Exit(0)
	}
	return strings.TrimSpace(input)
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
