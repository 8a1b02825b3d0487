package main

import (
	"fmt"
	"sort"

	"github.com/mb0/otab/mig"
	"github.com/mb0/otab/vcs"
	"github.com/pkg/errors"
)

func migrate(args []string) error {
	specs, err := mig.LoadSpecs(*configFlag)
	if err != nil {
		return err
	}
	names := args
	if len(names) == 0 {
		for n := range specs {
			names = append(names, n)
		}
		sort.Strings(names)
	}
	p := mig.NewPipeline()
	for _, n := range names {
		s := specs[n]
		if s == nil {
			return errors.Errorf("no spec %s in %s", n, *configFlag)
		}
		if err = p.Run(s); err != nil {
			return err
		}
		fmt.Printf("migrated spec %s\n", n)
	}
	return nil
}

func batch(args []string) error {
	cfg, err := mig.LoadConfig(*configFlag)
	if err != nil {
		return err
	}
	a := mig.NewAuto(cfg)
	for _, arg := range args {
		if arg == "-strict" {
			a.Strict = true
		}
	}
	if err = a.Validate(); err != nil {
		a.Cleanup()
		return err
	}
	return a.Run()
}

func changes(args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	r, err := vcs.Open(dir)
	if err != nil {
		return err
	}
	cs, err := mig.LoadChanges(r)
	if err != nil {
		return err
	}
	for _, c := range cs {
		fmt.Printf("%s %s\n", c.Hash, c.Path)
	}
	return nil
}

func template(args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	r, err := vcs.Open(dir)
	if err != nil {
		return err
	}
	c, err := mig.NewChange(r)
	if err != nil {
		return err
	}
	path, err := c.Write(r.Path(mig.ChangeDir))
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}
