package integration

import "github.com/sukanihq/sukani/model"

// Fixture IDs shared across the integration tests. The scenario is an
// invoice approval process being upgraded from version 1 to version 2.
const (
	InvoiceDefV1 = "invoice:1:aaa"
	InvoiceDefV2 = "invoice:2:bbb"
	InvoiceInst  = "inst-42"
	ApproveTask  = "approveInvoice"
	ReviewTask   = "reviewInvoice"
	ArchiveTask  = "archiveInvoice"
	NotifyTask   = "notifyVendor"
	PrepareTask  = "prepareBankTransfer"
)

// SeedInvoiceFixtures loads the default invoice process into a mock engine:
// two definition versions, one running instance with tokens on the approve
// and review tasks, and a generate suggestion mapping the approve task.
func SeedInvoiceFixtures(m *MockEngine) {
	m.SetDefinition(InvoiceDefV1, []model.ProcessNode{
		{ID: ApproveTask, Name: "Approve Invoice", Type: "userTask"},
		{ID: ReviewTask, Name: "Review Invoice", Type: "userTask"},
		{ID: ArchiveTask, Name: "Archive Invoice", Type: "serviceTask"},
	})
	m.SetDefinition(InvoiceDefV2, []model.ProcessNode{
		{ID: ApproveTask, Name: "Approve Invoice", Type: "userTask"},
		{ID: NotifyTask, Name: "Notify Vendor", Type: "serviceTask"},
		{ID: PrepareTask, Name: "Prepare Bank Transfer", Type: "serviceTask"},
	})
	m.SetInstanceTree(InvoiceInst, Tree("invoiceProcess",
		Leaf(ApproveTask),
		Leaf(ReviewTask),
	))
	m.SetSuggestions([]model.MigrationSuggestion{
		{SourceActivityIDs: []string{ApproveTask}, TargetActivityID: ApproveTask},
	})
}
