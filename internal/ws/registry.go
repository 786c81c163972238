package ws

import (
	"sync"

	"github.com/youssef-george/Everlast-Intranet-Mobile-App-sub001/internal/metrics"
)

// Registry 维护 userID 到活跃连接的映射,是"此人当前是否可达"的唯一可信来源。
// 所有访问都在同一把锁下进行,register/unregister/resolve 互相原子。
type Registry struct {
	mu    sync.RWMutex
	conns map[uint]*Client
}

func NewRegistry() *Registry { return &Registry{conns: make(map[uint]*Client)} }

// Register 无条件覆盖同一用户的旧映射(last-connect-wins),
// 返回被顶替的连接供调用方关闭,没有则返回 nil。
func (r *Registry) Register(c *Client) *Client {
	r.mu.Lock()
	old := r.conns[c.UserID]
	r.conns[c.UserID] = c
	r.mu.Unlock()
	if old == nil {
		metrics.WsConnections.Inc()
	}
	return old
}

// Unregister 按连接 ID 反向扫描移除表项。线性扫描可接受:
// 连接数受并发员工数上限约束。若该用户已被更新的连接顶替,
// 旧连接的断开不得清掉新映射,因此只删除自己真正持有的表项。
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for uid, cur := range r.conns {
		if cur.ID == c.ID {
			delete(r.conns, uid)
			metrics.WsConnections.Dec()
			return true
		}
	}
	return false
}

// Resolve 纯查询,永不阻塞、永不失败。
func (r *Registry) Resolve(userID uint) (*Client, bool) {
	r.mu.RLock()
	c, ok := r.conns[userID]
	r.mu.RUnlock()
	return c, ok
}

func (r *Registry) Online(userID uint) bool {
	_, ok := r.Resolve(userID)
	return ok
}

// SendTo 向指定用户的连接投递一条事件,用户不可达时返回 false,
// 不可达不是错误而是一种路由结果。
func (r *Registry) SendTo(userID uint, payload []byte) bool {
	c, ok := r.Resolve(userID)
	if !ok {
		return false
	}
	return c.Send(payload)
}

// Broadcast 向所有活跃连接投递一条事件。
func (r *Registry) Broadcast(payload []byte) {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.conns))
	for _, c := range r.conns {
		clients = append(clients, c)
	}
	r.mu.RUnlock()
	for _, c := range clients {
		c.Send(payload)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
