package models

// WorkUnit is what one successful spider run emits: the property itself
// plus whichever related records the page yielded. The pipeline only
// processes members that are present.
type WorkUnit struct {
	Property         *Property
	UserProperty     *UserProperty
	PropertyOverview *PropertyOverview
	CommonOverview   *CommonOverview
}
