package hermestools_test

type Column struct {
	Name     string
	Nullable bool
}

var (
	ColumnID    = Column{Name: "id"}
	ColumnTitle = Column{Name: "title", Nullable: true}
)

var columns = []Column{
	ColumnID,
	ColumnTitle,
}
