// Package room implements the Room Store: the sole mutator of Agent,
// Task, Message, Lock, Vote, Portal, Handoff, Checkpoint, Cache, and
// Synapse state, built on top of the internal/backend capability
// interface. See spec.md §3-4.2 for the full contract.
package room

import "time"

// Room is the coordination container owning agents, tasks, messages,
// locks, votes, and portals for one (cluster, room_id) pair.
type Room struct {
	Cluster     string    `json:"cluster"`
	RoomID      string    `json:"room_id"`
	CreatedAt   time.Time `json:"created_at"`
	Paused      bool      `json:"paused"`
	PauseReason string    `json:"pause_reason,omitempty"`
	Mode        []string  `json:"mode"` // enabled tool categories
	Tempo       float64   `json:"tempo"` // seconds
}

type AgentStatus string

const (
	AgentActive AgentStatus = "active"
	AgentIdle   AgentStatus = "idle"
	AgentBusy   AgentStatus = "busy"
	AgentZombie AgentStatus = "zombie"
	AgentLeft   AgentStatus = "left"
)

// Agent represents one connected LLM session.
type Agent struct {
	ID               string      `json:"id"`
	DisplayName      string      `json:"display_name"`
	Capabilities     []string    `json:"capabilities"`
	Status           AgentStatus `json:"status"`
	JoinedAt         time.Time   `json:"joined_at"`
	LastHeartbeat    time.Time   `json:"last_heartbeat"`
	CurrentTaskID    string      `json:"current_task_id,omitempty"`
	CurrentWorktree  string      `json:"current_worktree,omitempty"`
	Role             string      `json:"role,omitempty"`
}

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskClaimed    TaskStatus = "claimed"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskCancelled  TaskStatus = "cancelled"
)

// Task is a unit of work with a state machine and an owner.
type Task struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	Description          string     `json:"description,omitempty"`
	Priority             int        `json:"priority"` // 1..5, 1 highest
	Status               TaskStatus `json:"status"`
	ClaimedBy            string     `json:"claimed_by,omitempty"`
	ClaimedAt            *time.Time `json:"claimed_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	Source               string     `json:"source,omitempty"`
	Payload              string     `json:"payload,omitempty"` // opaque JSON
	RequiredCapabilities []string   `json:"required_capabilities,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

type MessageKind string

const (
	MessageBroadcast    MessageKind = "broadcast"
	MessageSystem       MessageKind = "system"
	MessageTaskUpdate   MessageKind = "task_update"
	MessageAgentEvent   MessageKind = "agent_event"
	MessageHandoffEvent MessageKind = "handoff_event"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Message is an append-only, monotonically-sequenced room event.
type Message struct {
	Seq       int64       `json:"seq"`
	Timestamp time.Time   `json:"timestamp"`
	Sender    string      `json:"sender"`
	Kind      MessageKind `json:"kind"`
	Body      string      `json:"body"` // JSON
	Priority  Priority    `json:"priority"`
}

// Lock is an advisory, exclusive hold on a normalized file path.
type Lock struct {
	FilePath   string     `json:"file_path"`
	Holder     string     `json:"holder"`
	AcquiredAt time.Time  `json:"acquired_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type VoteStatus string

const (
	VoteOpen   VoteStatus = "open"
	VoteClosed VoteStatus = "closed"
)

// Vote tallies one ballot per agent over a fixed option set.
type Vote struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Options   []string          `json:"options"`
	CreatedBy string            `json:"created_by"`
	OpenedAt  time.Time         `json:"opened_at"`
	ClosesAt  *time.Time        `json:"closes_at,omitempty"`
	Status    VoteStatus        `json:"status"`
	Ballots   map[string]string `json:"ballots"` // agent -> option
}

type PortalStatus string

const (
	PortalOpen   PortalStatus = "open"
	PortalClosed PortalStatus = "closed"
)

// Portal is a bidirectional private channel between two agents.
type Portal struct {
	ID       string       `json:"id"`
	AgentA   string       `json:"agent_a"`
	AgentB   string       `json:"agent_b"`
	OpenedAt time.Time    `json:"opened_at"`
	Status   PortalStatus `json:"status"`
	InboxA   []PortalMsg  `json:"inbox_a"`
	InboxB   []PortalMsg  `json:"inbox_b"`
}

// PortalMsg is one enqueued message inside a Portal inbox.
type PortalMsg struct {
	From      string    `json:"from"`
	Payload   string    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

type HandoffReason string

const (
	HandoffContextLimit HandoffReason = "context_limit"
	HandoffTimeout      HandoffReason = "timeout"
	HandoffExplicit     HandoffReason = "explicit"
	HandoffFatalError   HandoffReason = "fatal_error"
	HandoffTaskComplete HandoffReason = "task_complete"
)

type HandoffStatus string

const (
	HandoffPending  HandoffStatus = "pending"
	HandoffClaimed  HandoffStatus = "claimed"
	HandoffConsumed HandoffStatus = "consumed"
	HandoffExpired  HandoffStatus = "expired"
)

// Handoff is the DNA capsule transferred when one agent yields to
// another.
type Handoff struct {
	ID               string        `json:"id"`
	FromAgent        string        `json:"from_agent"`
	ToAgent          string        `json:"to_agent,omitempty"`
	TaskID           string        `json:"task_id"`
	Reason           HandoffReason `json:"reason"`
	ContextPct       float64       `json:"context_pct"`
	Goal             string        `json:"goal"`
	ProgressSummary  string        `json:"progress_summary"`
	CompletedSteps   []string      `json:"completed_steps"`
	PendingSteps     []string      `json:"pending_steps"`
	KeyDecisions     []string      `json:"key_decisions"`
	Assumptions      []string      `json:"assumptions"`
	Warnings         []string      `json:"warnings"`
	UnresolvedErrors []string      `json:"unresolved_errors"`
	ModifiedFiles    []string      `json:"modified_files"`
	CreatedAt        time.Time     `json:"created_at"`
	Status           HandoffStatus `json:"status"`
	ClaimedAt        *time.Time    `json:"claimed_at,omitempty"`
}

type CheckpointStatus string

const (
	CheckpointPending     CheckpointStatus = "pending"
	CheckpointInProgress  CheckpointStatus = "in_progress"
	CheckpointInterrupted CheckpointStatus = "interrupted"
	CheckpointCompleted   CheckpointStatus = "completed"
	CheckpointRejected    CheckpointStatus = "rejected"
	CheckpointBranched    CheckpointStatus = "branched"
	CheckpointReverted    CheckpointStatus = "reverted"
)

// Checkpoint is a durable workflow-step snapshot supporting
// interrupt/approve/reject/branch/revert.
type Checkpoint struct {
	ID                 string           `json:"id"`
	TaskID             string           `json:"task_id"`
	Step               int              `json:"step"`
	StateJSON          string           `json:"state_json"`
	Status             CheckpointStatus `json:"status"`
	InterruptMessage   string           `json:"interrupt_message,omitempty"`
	RejectReason       string           `json:"reject_reason,omitempty"`
	ParentCheckpointID string           `json:"parent_checkpoint_id,omitempty"`
	BranchName         string           `json:"branch_name,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	InterruptedAt      *time.Time       `json:"interrupted_at,omitempty"`
	ResolvedAt         *time.Time       `json:"resolved_at,omitempty"`
}

// CacheEntry is a room-scoped TTL'd string value.
type CacheEntry struct {
	Key       string     `json:"key"`
	Value     string     `json:"value"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
}

// Synapse is a directed edge in the Hebbian collaboration graph.
type Synapse struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Weight    float64   `json:"weight"`
	Successes int       `json:"successes"`
	Failures  int       `json:"failures"`
	UpdatedAt time.Time `json:"updated_at"`
}
