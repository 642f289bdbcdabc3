package service

import (
	"errors"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/huifen-rgb/vibe-coding-remover/model"
	"github.com/huifen-rgb/vibe-coding-remover/utils"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many active sessions")
)

// Processed 最近一次成功合成的结果
type Processed struct {
	Image  *image.NRGBA
	Result model.CompositeResult
}

// Session 单个编辑会话：源图、三个图层和缓存的合成结果
type Session struct {
	ID     string
	Layers *model.LayerSet

	mu        sync.RWMutex
	source    *Source
	processed *Processed
	lastUsed  time.Time
}

func newSession(id string) *Session {
	return &Session{
		ID:       id,
		Layers:   model.NewLayerSet(),
		lastUsed: time.Now(),
	}
}

// Load 载入新源图；指纹变化时重置全部图层与合成结果，返回是否发生了重置
func (s *Session) Load(src *Source) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastUsed = time.Now()
	if s.source != nil && s.source.Fingerprint == src.Fingerprint {
		return false
	}

	reset := s.source != nil
	s.source = src
	s.resetLocked()

	if reset {
		utils.Logger.Info("new source image detected, session reset",
			zap.String("session", s.ID),
			zap.String("fingerprint", src.Fingerprint))
	}
	return reset
}

// ResetAll 清空三个图层与缓存的合成结果，保留源图
func (s *Session) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.Layers.Reset()
	s.processed = nil
}

// Source 返回当前源图，未加载时为 nil
func (s *Session) Source() *Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Processed 返回最近一次合成结果，无结果时为 nil
func (s *Session) Processed() *Processed {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processed
}

// storeProcessed 仅当结果对应的源图仍是当前源图时写入
func (s *Session) storeProcessed(fingerprint string, p *Processed) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.source == nil || s.source.Fingerprint != fingerprint {
		return false
	}
	s.processed = p
	return true
}

func (s *Session) touch(t time.Time) {
	s.mu.Lock()
	s.lastUsed = t
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsed
}

// Info 返回会话概要
func (s *Session) Info() model.SessionInfo {
	info := model.SessionInfo{ID: s.ID, Layers: map[string]bool{}}
	for _, k := range model.LayerKinds {
		info.Layers[k.String()] = s.Layers.Has(k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if src := s.source; src != nil {
		info.Fingerprint = src.Fingerprint
		info.Format = src.Format
		info.Width = src.Geometry.OrigWidth
		info.Height = src.Geometry.OrigHeight
		info.DisplayWidth = src.Geometry.DisplayWidth
		info.DisplayHeight = src.Geometry.DisplayHeight
		info.ScaleX = src.Geometry.ScaleX
		info.ScaleY = src.Geometry.ScaleY
	}
	info.HasResult = s.processed != nil
	return info
}

// SessionStore 内存中的会话表，按空闲时间淘汰
type SessionStore struct {
	mu          sync.Mutex
	sessions    map[string]*Session
	ttl         time.Duration
	maxSessions int
	now         func() time.Time
}

func NewSessionStore(ttl time.Duration, maxSessions int) *SessionStore {
	return &SessionStore{
		sessions:    make(map[string]*Session),
		ttl:         ttl,
		maxSessions: maxSessions,
		now:         time.Now,
	}
}

// Create 新建会话，超出上限时先清理过期会话
func (st *SessionStore) Create() (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.maxSessions > 0 && len(st.sessions) >= st.maxSessions {
		st.pruneLocked()
		if len(st.sessions) >= st.maxSessions {
			return nil, ErrTooManySessions
		}
	}

	s := newSession(utils.GenerateSessionID())
	s.lastUsed = st.now()
	st.sessions[s.ID] = s
	return s, nil
}

func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if ok && st.expired(s) {
		delete(st.sessions, id)
		ok = false
	}
	st.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(st.now())
	return s, nil
}

func (st *SessionStore) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	return ok
}

// Prune 删除过期会话，返回删除数量
func (st *SessionStore) Prune() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.pruneLocked()
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *SessionStore) pruneLocked() int {
	n := 0
	for id, s := range st.sessions {
		if st.expired(s) {
			delete(st.sessions, id)
			n++
		}
	}
	if n > 0 {
		utils.Logger.Debug("expired sessions pruned", zap.Int("count", n))
	}
	return n
}

func (st *SessionStore) expired(s *Session) bool {
	if st.ttl <= 0 {
		return false
	}
	return st.now().Sub(s.idleSince()) > st.ttl
}
