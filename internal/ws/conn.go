package ws

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/auth"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/config"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/metrics"
	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/models"
)

// EventHandler 由消息分发引擎实现,连接层只负责收发字节。
type EventHandler interface {
	Connected(c *Client)
	Disconnected(c *Client)
	HandleEvent(c *Client, data []byte)
}

// Client 是一条活跃的全双工传输会话,ID 是随机的连接句柄。
type Client struct {
	ID       string
	UserID   uint
	Username string

	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, userID uint, username string) *Client {
	return &Client{
		ID:       newConnID(),
		UserID:   userID,
		Username: username,
		conn:     conn,
		send:     make(chan []byte, 256),
		done:     make(chan struct{}),
	}
}

func newConnID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Send 非阻塞投递,连接已关闭或缓冲写满时丢弃并返回 false。
func (c *Client) Send(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		metrics.EventsDroppedTotal.Inc()
		return false
	}
}

// Outbox 暴露出站队列,writePump 与测试从这里消费。
func (c *Client) Outbox() <-chan []byte { return c.send }

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve 处理 WebSocket 握手:校验访问令牌、升级连接、挂接读写泵。
func Serve(h EventHandler, db *gorm.DB, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.BearerOrQueryToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := auth.ParseAccessToken(token, cfg.JWTSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		var user models.User
		if err := db.First(&user, claims.UserID).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warn().Err(err).Uint("user_id", user.ID).Msg("ws upgrade")
			return
		}
		client := NewClient(conn, user.ID, user.Username)
		h.Connected(client)

		go client.writePump()
		client.readPump(h)
	}
}

func (c *Client) readPump(h EventHandler) {
	defer func() {
		h.Disconnected(c)
		c.Close()
	}()
	c.conn.SetReadLimit(1 << 20) // 1MB
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		h.HandleEvent(c, data)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			_ = w.Close()
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
