package resource

// Option sets shared by schemas and the invoice views.
var (
	DealStages      = []string{"Prospecting", "Qualification", "Proposal", "Negotiation", "Closed Won", "Closed Lost"}
	TaskStatuses    = []string{"Pending", "In Progress", "Completed"}
	InvoiceStatuses = []string{"Pending", "Paid", "Overdue"}
)

// Customers describes /api/customers.
func Customers() *Schema {
	return &Schema{
		Name:     "customers",
		Singular: "Customer",
		Title:    "Customers",
		Path:     "/customers",
		APIPath:  "/api/customers",
		IDField:  "customer_id",
		Fields: []Field{
			{Name: "first_name", Label: "First Name", Kind: KindText, Validate: "required,max=100"},
			{Name: "last_name", Label: "Last Name", Kind: KindText, Validate: "required,max=100"},
			{Name: "company", Label: "Company", Kind: KindText, Validate: "max=200"},
			{Name: "email", Label: "Email", Kind: KindEmail, Validate: "required,email"},
			{Name: "phone", Label: "Phone", Kind: KindTel, Validate: "max=50"},
		},
		ListColumns: []string{"first_name", "last_name", "company", "email", "phone"},
		LabelFields: []string{"first_name", "last_name"},
		Deletable:   true,
	}
}

// Deals describes /api/deals.
func Deals() *Schema {
	return &Schema{
		Name:     "deals",
		Singular: "Deal",
		Title:    "Deals",
		Path:     "/deals",
		APIPath:  "/api/deals",
		IDField:  "deal_id",
		Fields: []Field{
			{Name: "deal_name", Label: "Deal Name", Kind: KindText, Validate: "required,max=200"},
			{Name: "customer_id", Label: "Customer", Kind: KindSelect, Validate: "required", Relation: &Relation{Resource: "customers"}},
			{Name: "stage", Label: "Stage", Kind: KindSelect, Validate: "required", Options: DealStages},
			{Name: "amount", Label: "Amount", Kind: KindMoney, Validate: "required"},
		},
		ListColumns: []string{"deal_name", "customer_id", "stage", "amount"},
		LabelFields: []string{"deal_name"},
		Deletable:   true,
	}
}

// Employees describes /api/employees.
func Employees() *Schema {
	return &Schema{
		Name:     "employees",
		Singular: "Employee",
		Title:    "Employees",
		Path:     "/employees",
		APIPath:  "/api/employees",
		IDField:  "employee_id",
		Fields: []Field{
			{Name: "first_name", Label: "First Name", Kind: KindText, Validate: "required,max=100"},
			{Name: "last_name", Label: "Last Name", Kind: KindText, Validate: "required,max=100"},
			{Name: "email", Label: "Email", Kind: KindEmail, Validate: "required,email"},
			{Name: "job_title", Label: "Job Title", Kind: KindText, Validate: "max=100"},
			{Name: "department", Label: "Department", Kind: KindText, Validate: "max=100"},
			{Name: "phone", Label: "Phone", Kind: KindTel, Validate: "max=50"},
			{Name: "hire_date", Label: "Hire Date", Kind: KindDate, Validate: "omitempty,datetime=2006-01-02"},
		},
		ListColumns: []string{"first_name", "last_name", "email", "job_title", "department", "hire_date"},
		LabelFields: []string{"first_name", "last_name"},
		Deletable:   true,
	}
}

// Tasks describes /api/tasks.
func Tasks() *Schema {
	return &Schema{
		Name:     "tasks",
		Singular: "Task",
		Title:    "Tasks",
		Path:     "/tasks",
		APIPath:  "/api/tasks",
		IDField:  "task_id",
		Fields: []Field{
			{Name: "task_name", Label: "Task Name", Kind: KindText, Validate: "required,max=200"},
			{Name: "description", Label: "Description", Kind: KindTextarea},
			{Name: "due_date", Label: "Due Date", Kind: KindDate, Validate: "omitempty,datetime=2006-01-02"},
			{Name: "status", Label: "Status", Kind: KindSelect, Validate: "required", Options: TaskStatuses},
			{Name: "assigned_to", Label: "Assigned To", Kind: KindSelect, Relation: &Relation{Resource: "employees"}},
			{Name: "customer_id", Label: "Customer", Kind: KindSelect, Relation: &Relation{Resource: "customers"}},
			{Name: "deal_id", Label: "Deal", Kind: KindSelect, Relation: &Relation{Resource: "deals"}},
		},
		ListColumns: []string{"task_name", "due_date", "status", "assigned_to", "customer_id", "deal_id"},
		LabelFields: []string{"task_name"},
		Deletable:   true,
	}
}

// Inventory describes /api/inventory.
func Inventory() *Schema {
	return &Schema{
		Name:     "inventory",
		Singular: "Item",
		Title:    "Inventory",
		Path:     "/inventory",
		APIPath:  "/api/inventory",
		IDField:  "item_id",
		Fields: []Field{
			{Name: "item_name", Label: "Item Name", Kind: KindText, Validate: "required,max=200"},
			{Name: "description", Label: "Description", Kind: KindTextarea},
			{Name: "stock_quantity", Label: "Stock Quantity", Kind: KindNumber, Validate: "required,number"},
			{Name: "unit_price", Label: "Unit Price", Kind: KindMoney, Validate: "required"},
		},
		ListColumns: []string{"item_name", "description", "stock_quantity", "unit_price"},
		LabelFields: []string{"item_name"},
		Deletable:   true,
	}
}

// Invoices describes /api/invoices. Editing submits only status and
// amount_due; the list links to the detail page with payments.
func Invoices() *Schema {
	return &Schema{
		Name:     "invoices",
		Singular: "Invoice",
		Title:    "Invoices",
		Path:     "/invoices",
		APIPath:  "/api/invoices",
		IDField:  "invoice_id",
		Fields: []Field{
			{Name: "customer_id", Label: "Customer", Kind: KindSelect, Validate: "required", Relation: &Relation{Resource: "customers"}},
			{Name: "deal_id", Label: "Deal", Kind: KindSelect, Relation: &Relation{Resource: "deals"}},
			{Name: "invoice_number", Label: "Invoice Number", Kind: KindText, Validate: "required,max=50"},
			{Name: "issue_date", Label: "Issue Date", Kind: KindDate, Validate: "required,datetime=2006-01-02"},
			{Name: "due_date", Label: "Due Date", Kind: KindDate, Validate: "required,datetime=2006-01-02"},
			{Name: "amount_due", Label: "Amount Due", Kind: KindMoney, Validate: "required"},
			{Name: "status", Label: "Status", Kind: KindSelect, Validate: "required", Options: InvoiceStatuses},
		},
		UpdateFields: []string{"status", "amount_due"},
		ListColumns:  []string{"invoice_number", "customer_id", "deal_id", "amount_due", "due_date", "status"},
		LabelFields:  []string{"invoice_number"},
		Deletable:    true,
		DetailLinks:  true,
	}
}

// DefaultRegistry registers every CRM resource the console manages.
func DefaultRegistry() (*Registry, error) {
	return NewRegistry(Customers(), Deals(), Employees(), Tasks(), Inventory(), Invoices())
}
