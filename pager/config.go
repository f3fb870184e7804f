package pager

const (
	configRootOffset     = 0
	configFirstFreeOffset = 8
)

// Config is the content of page 0: the root offset and the head of the
// free-list. A zero field means "unset" / "no free pages".
type Config struct {
	RootPage      Offset
	FirstFreePage Offset
}

func parseConfig(p *Page) (Config, error) {
	root, err := p.Uint64(configRootOffset)
	if err != nil {
		return Config{}, err
	}
	ffp, err := p.Uint64(configFirstFreeOffset)
	if err != nil {
		return Config{}, err
	}
	return Config{RootPage: Offset(root), FirstFreePage: Offset(ffp)}, nil
}

func (c Config) toPage() *Page {
	p := new(Page)
	p.PutUint64(configRootOffset, uint64(c.RootPage))
	p.PutUint64(configFirstFreeOffset, uint64(c.FirstFreePage))
	return p
}
