// internal/service/cart/interfaces/badge_hub.go
package interfaces

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/cart/application"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool { // 简化处理，允许所有跨域
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// BadgeHub 维护所有活跃的角标连接。
// 角标数的扇出由 CartService 的订阅机制完成，Hub 只管理连接生命周期。
type BadgeHub struct {
	cart       *application.CartService
	clients    map[*badgeClient]struct{}
	register   chan *badgeClient
	unregister chan *badgeClient
	lock       sync.RWMutex
}

func NewBadgeHub(cart *application.CartService) *BadgeHub {
	return &BadgeHub{
		cart:       cart,
		clients:    make(map[*badgeClient]struct{}),
		register:   make(chan *badgeClient),
		unregister: make(chan *badgeClient),
	}
}

// Run 处理连接注册与注销，直到进程退出。
func (h *BadgeHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.lock.Lock()
			h.clients[client] = struct{}{}
			h.lock.Unlock()
		case client := <-h.unregister:
			h.lock.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			h.lock.Unlock()
		}
	}
}

// badgeClient 是一个角标 WebSocket 连接的代表。
type badgeClient struct {
	hub       *BadgeHub
	conn      *websocket.Conn
	sessionID string

	counts      <-chan int
	unsubscribe func()
	closeOnce   sync.Once
}

func (c *badgeClient) close() {
	c.closeOnce.Do(func() {
		c.unsubscribe()
		c.conn.Close()
	})
}

// badgeMessage 是推给客户端的角标载荷。
type badgeMessage struct {
	Count int `json:"count"`
}

// writePump 把购物车行数的每次变化推到客户端。
func (c *badgeClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.unregister <- c
	}()

	for {
		select {
		case count, ok := <-c.counts:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
				return
			}
			payload, _ := json.Marshal(badgeMessage{Count: count})
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

// readPump 只消费心跳，读出错即视为连接结束。
func (c *badgeClient) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ServeWs 把 HTTP 请求升级为角标推送连接。
func (h *BadgeHub) ServeWs(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(r)
	if !ok {
		http.Error(w, "session id is required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	counts, unsubscribe := h.cart.Subscribe(sess.ID)
	client := &badgeClient{
		hub:         h,
		conn:        conn,
		sessionID:   sess.ID,
		counts:      counts,
		unsubscribe: unsubscribe,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}
