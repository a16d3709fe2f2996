// cmd/moderation-gateway/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"lekker/internal/pkg/bootstrap"
	"lekker/internal/pkg/logger"
	"lekker/internal/pkg/mq"
	moderationifaces "lekker/internal/service/moderation/interfaces"
)

const serviceName = "moderation-gateway"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var (
	nodeID   = serviceName + "-" + uuid.New().String()[:8]
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// 管理面走内网，跨域放开
		CheckOrigin: func(r *http.Request) bool { return true },
	}
)

// Hub 维护所有在线的管理员连接，并把凭证提交广播给它们。
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			logger.Ctx(ctx).Info().Int64("admin", client.adminID).Str("node", nodeID).Msg("moderator connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			logger.Ctx(ctx).Info().Int64("admin", client.adminID).Msg("moderator disconnected")
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// 写不进去说明连接已经死了，丢掉它
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Client 是一个管理员的 WebSocket 连接。
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	adminID   int64
	decisions *kafka.Writer
}

// writePump 把 send 通道里的消息写入连接，并周期性地发 ping。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// wsDecision 是管理员在连接上发回的裁决消息。
type wsDecision struct {
	Action string `json:"action"` // "approve:<id>" / "reject:<id>"
}

// readPump 读取管理员发回的裁决并转发到裁决主题。
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var decision wsDecision
		if err := json.Unmarshal(message, &decision); err != nil {
			logger.Ctx(context.Background()).Warn().Err(err).Int64("admin", c.adminID).Msg("bad decision message")
			continue
		}
		cmd := moderationifaces.AdminCommand{AdminTelegramID: c.adminID, Action: decision.Action}
		value, err := json.Marshal(cmd)
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		key := []byte(strconv.FormatInt(c.adminID, 10))
		if err := mq.ProduceMessage(ctx, c.decisions, key, value); err != nil {
			logger.Ctx(ctx).Error().Err(err).Str("action", decision.Action).Msg("failed to forward decision")
		}
		cancel()
	}
}

func serveWs(hub *Hub, decisions *kafka.Writer, w http.ResponseWriter, r *http.Request) {
	adminID, err := strconv.ParseInt(r.URL.Query().Get("adminId"), 10, 64)
	if err != nil || adminID == 0 {
		http.Error(w, "adminId is required", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := &Client{hub: hub, conn: conn, send: make(chan []byte, 256), adminID: adminID, decisions: decisions}
	client.hub.register <- client
	go client.writePump()
	go client.readPump()
}

// consumeSubmissions 消费凭证提交并广播给所有在线管理员。
func consumeSubmissions(ctx context.Context, reader *kafka.Reader, hub *Hub) error {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Ctx(ctx).Error().Err(err).Msg("could not fetch submission, retrying")
			time.Sleep(1 * time.Second)
			continue
		}
		hub.broadcast <- msg.Value
		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("failed to commit submission")
		}
	}
}

func main() {
	if err := bootstrap.LoadConfig(os.Getenv("CONFIG_PATH")); err != nil {
		panic(err)
	}
	cfg := bootstrap.GetCurrentConfig()
	logger.Init(serviceName, cfg.App.PrettyLog)

	brokers := cfg.Infra.Kafka.Brokers
	topics := cfg.Infra.Kafka.Topics
	decisionWriter := mq.NewKafkaWriter(brokers, topics.ModerationDecisions)
	// 每个网关节点独立的消费组：提交要广播到所有节点
	submissionReader := mq.NewKafkaReader(brokers, topics.ModerationRequests, nodeID)

	hub := newHub()

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.AdminPort + 1,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			appCtx.Mux.Handle("/metrics", promhttp.Handler())
			appCtx.Mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
				serveWs(hub, decisionWriter, w, r)
			})
		},
		Run: func(ctx context.Context) error {
			go hub.run(ctx)
			return consumeSubmissions(ctx, submissionReader, hub)
		},
		Cleanup: func(ctx context.Context) {
			submissionReader.Close()
			decisionWriter.Close()
		},
	})
}
