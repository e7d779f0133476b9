package main

type CatalogCmd struct{}

func (c *CatalogCmd) Run(cfg *commandContext) error {
	urls, err := cfg.Catalog()
	if err != nil {
		return err
	}

	return cfg.OutputFormatter(&urls)
}
