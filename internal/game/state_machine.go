package game

import (
	"fmt"
	"sort"
)

// Event 状态事件
type Event string

const (
	EventStart       Event = "start"        // 开局
	EventWin         Event = "win"          // 猜中
	EventTimeout     Event = "timeout"      // 超时
	EventSetQuestion Event = "set_question" // 出题
)

// StateTransition 状态转换定义
type StateTransition struct {
	From  SessionStatus
	Event Event
	To    SessionStatus
}

// StateMachine 会话状态机，只描述合法转换，不持有状态
type StateMachine struct {
	transitions map[string]StateTransition
}

// NewStateMachine 创建状态机
func NewStateMachine() *StateMachine {
	sm := &StateMachine{transitions: make(map[string]StateTransition)}
	sm.initTransitions()
	return sm
}

// initTransitions 初始化状态转换规则
func (sm *StateMachine) initTransitions() {
	// 大厅 -> 进行中
	sm.addTransition(StateTransition{From: StatusLobby, Event: EventStart, To: StatusInProgress})
	// 进行中 -> 结束（猜中或超时）
	sm.addTransition(StateTransition{From: StatusInProgress, Event: EventWin, To: StatusEnded})
	sm.addTransition(StateTransition{From: StatusInProgress, Event: EventTimeout, To: StatusEnded})
	// 出题回到大厅
	sm.addTransition(StateTransition{From: StatusLobby, Event: EventSetQuestion, To: StatusLobby})
	sm.addTransition(StateTransition{From: StatusEnded, Event: EventSetQuestion, To: StatusLobby})
}

// addTransition 添加状态转换
func (sm *StateMachine) addTransition(t StateTransition) {
	sm.transitions[sm.transitionKey(t.From, t.Event)] = t
}

// transitionKey 生成转换键
func (sm *StateMachine) transitionKey(status SessionStatus, event Event) string {
	return fmt.Sprintf("%s:%s", status, event)
}

// Next 返回目标状态
func (sm *StateMachine) Next(from SessionStatus, event Event) (SessionStatus, bool) {
	t, ok := sm.transitions[sm.transitionKey(from, event)]
	if !ok {
		return from, false
	}
	return t.To, true
}

// CanTransition 检查是否可以转换
func (sm *StateMachine) CanTransition(from SessionStatus, event Event) bool {
	_, ok := sm.transitions[sm.transitionKey(from, event)]
	return ok
}

// ValidEvents 获取某状态下的有效事件
func (sm *StateMachine) ValidEvents(from SessionStatus) []Event {
	var events []Event
	for _, t := range sm.transitions {
		if t.From == from {
			events = append(events, t.Event)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })
	return events
}

// apply 执行转换
func (sm *StateMachine) apply(s *Session, event Event) error {
	to, ok := sm.Next(s.Status, event)
	if !ok {
		return fmt.Errorf("无效的状态转换: 状态=%s, 事件=%s", s.Status, event)
	}
	s.Status = to
	return nil
}
