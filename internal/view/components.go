package view

import "github.com/xiaot623/gogo/a2ui/internal/protocol"

// components collects a view's component list. The first constructor error
// sticks and later additions are ignored.
type components struct {
	list []protocol.Component
	err  error
}

func (c *components) add(comp protocol.Component, err error) {
	if c.err != nil {
		return
	}
	if err != nil {
		c.err = err
		return
	}
	c.list = append(c.list, comp)
}

func (c *components) text(id, value string, hint protocol.UsageHint) {
	c.add(protocol.NewText(id, value, hint))
}

func (c *components) divider(id string) {
	c.add(protocol.NewDivider(id, protocol.AxisHorizontal))
}

func (c *components) image(id, url string) {
	c.add(protocol.NewImage(id, url))
}

func (c *components) column(id string, children []string) {
	c.add(protocol.NewColumn(id, children, "", protocol.AlignmentStretch))
}

func (c *components) row(id string, children []string, distribution string) {
	c.add(protocol.NewRow(id, children, distribution, ""))
}

func (c *components) card(id, child string) {
	c.add(protocol.NewCard(id, child))
}

// button adds a Button and its label Text, which gets the ID "<id>-text".
func (c *components) button(id, label, actionName string, primary bool) {
	labelID := id + "-text"
	c.text(labelID, label, protocol.HintBody)
	c.add(protocol.NewButton(id, labelID, actionName, primary))
}

// textCard adds a Card holding a single body Text: <id> -> <id>-content -> <id>-text.
func (c *components) textCard(id, value string) {
	content := id + "-content"
	textID := id + "-text"
	c.card(id, content)
	c.column(content, []string{textID})
	c.text(textID, value, protocol.HintBody)
}

func (c *components) batch(surfaceID, root string) ([]protocol.Message, error) {
	if c.err != nil {
		return nil, c.err
	}
	return protocol.NewBatch(surfaceID, c.list, root)
}
