package projects

// Capability names one project membership flag
type Capability int

const (
	CanViewProject Capability = iota + 1
	CanPostMessages
	CanUploadDocuments
	CanEditTasks
	CanManageMilestones
	CanManageRisks
	CanManageExpenses
	CanApproveExpenses
)

var capabilities = map[Capability]struct {
	name string
	has  func(*Member) bool
}{
	CanViewProject:      {"can_view_project", func(m *Member) bool { return m.CanViewProject }},
	CanPostMessages:     {"can_post_messages", func(m *Member) bool { return m.CanPostMessages }},
	CanUploadDocuments:  {"can_upload_documents", func(m *Member) bool { return m.CanUploadDocuments }},
	CanEditTasks:        {"can_edit_tasks", func(m *Member) bool { return m.CanEditTasks }},
	CanManageMilestones: {"can_manage_milestones", func(m *Member) bool { return m.CanManageMilestones }},
	CanManageRisks:      {"can_manage_risks", func(m *Member) bool { return m.CanManageRisks }},
	CanManageExpenses:   {"can_manage_expenses", func(m *Member) bool { return m.CanManageExpenses }},
	CanApproveExpenses:  {"can_approve_expenses", func(m *Member) bool { return m.CanApproveExpenses }},
}

func (c Capability) String() string {
	if info, ok := capabilities[c]; ok {
		return info.name
	}
	return "unknown"
}

// Granted reports whether m holds c. Unknown capabilities and nil members
// are never granted.
func (c Capability) Granted(m *Member) bool {
	info, ok := capabilities[c]
	if !ok || m == nil {
		return false
	}
	return info.has(m)
}
