// Package main provides battlesim, an offline tool that runs one engagement
// between two combatants described in YAML files and prints the turn log.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/shinobi/internal/config"
	"github.com/cory-johannsen/shinobi/internal/game/combat"
	"github.com/cory-johannsen/shinobi/internal/game/content"
	"github.com/cory-johannsen/shinobi/internal/game/dice"
	"github.com/cory-johannsen/shinobi/internal/game/equipment"
	"github.com/cory-johannsen/shinobi/internal/game/powerstate"
	"github.com/cory-johannsen/shinobi/internal/game/stats"
	"github.com/cory-johannsen/shinobi/internal/observability"
	"github.com/cory-johannsen/shinobi/internal/scripting"
)

const usage = "usage: battlesim -attacker <file.yaml> -defender <file.yaml> [-seed n] [-boss] [-json] [-config file]"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// fighterFile is the YAML form of a combatant. Items are equipment IDs resolved
// against the loaded content.
type fighterFile struct {
	ID            string             `yaml:"id"`
	Name          string             `yaml:"name"`
	Base          stats.Block        `yaml:"base"`
	Elements      map[string]int     `yaml:"elements"`
	Techniques    map[string]int     `yaml:"techniques"`
	Items         []string           `yaml:"items"`
	Power         *powerstate.Active `yaml:"power"`
	CurrentHealth *int               `yaml:"current_health"`
}

// loadCombatant reads the combatant file at path.
//
// Postcondition: Returns a combatant whose ID defaults to the file name, or an
// error naming any unknown item.
func loadCombatant(path string, items *equipment.Registry) (*combat.Combatant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var f fighterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	resolved, unknown := items.Resolve(f.Items)
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%s: unknown items %s", path, strings.Join(unknown, ", "))
	}
	if f.ID == "" {
		f.ID = path
	}
	if f.Name == "" {
		f.Name = f.ID
	}
	c := &combat.Combatant{
		ID:            f.ID,
		Name:          f.Name,
		Base:          f.Base,
		Equipment:     resolved,
		Elements:      f.Elements,
		Techniques:    f.Techniques,
		Power:         f.Power,
		CurrentHealth: f.CurrentHealth,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// run parses args, plays the engagement and writes the report to out.
func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("battlesim", flag.ContinueOnError)
	fs.SetOutput(out)
	attackerPath := fs.String("attacker", "", "attacker YAML file")
	defenderPath := fs.String("defender", "", "defender YAML file")
	seedFlag := fs.String("seed", "", "dice seed; empty draws from crypto/rand")
	boss := fs.Bool("boss", false, "dampen every hit landed on the defender")
	asJSON := fs.Bool("json", false, "print the full result as JSON")
	configPath := fs.String("config", "", "configuration file for combat tuning, selection and content")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *attackerPath == "" || *defenderPath == "" {
		return errors.New(usage)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logging, "battlesim")
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = observability.Sync(logger) }()

	c, err := content.Load(cfg.Content.Dir)
	if err != nil {
		return fmt.Errorf("loading content: %w", err)
	}
	attacker, err := loadCombatant(*attackerPath, c.Equipment)
	if err != nil {
		return err
	}
	defender, err := loadCombatant(*defenderPath, c.Equipment)
	if err != nil {
		return err
	}

	var src dice.Source = dice.NewCryptoSource()
	if *seedFlag != "" {
		seed, err := strconv.ParseUint(*seedFlag, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid -seed %q: %w", *seedFlag, err)
		}
		src = dice.NewSeededSource(seed)
	}
	mode := combat.ModeStandard
	if *boss {
		mode = combat.ModeBoss
	}

	selector, release, err := scripting.Build(cfg.Combat.Selection, cfg.Combat.Script, c.Techniques, logger)
	if err != nil {
		return fmt.Errorf("building attack selector: %w", err)
	}
	defer release()

	engine := combat.NewEngine(c, cfg.Combat.Tuning, selector, logger)
	res := engine.Run(attacker, defender, mode, dice.NewLoggedSource(src, logger), time.Now())
	logger.Debug("simulation complete", zap.String("state", string(res.State)))

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	report(out, attacker, defender, res)
	return nil
}

func report(out io.Writer, attacker, defender *combat.Combatant, res combat.Result) {
	fmt.Fprintf(out, "%s (%d/%d) vs %s (%d/%d), %s mode\n",
		attacker.Name, res.AttackerStart, res.AttackerStats.MaxHealth,
		defender.Name, res.DefenderStart, res.DefenderStats.MaxHealth,
		res.Mode)
	for _, e := range res.Log {
		fmt.Fprintf(out, "[%3d] %s (%d left)\n", e.Turn, e.Description, e.TargetHealth)
	}
	switch res.Winner {
	case combat.SideAttacker:
		fmt.Fprintf(out, "%s wins", attacker.Name)
	case combat.SideDefender:
		fmt.Fprintf(out, "%s wins", defender.Name)
	default:
		fmt.Fprint(out, "draw")
	}
	fmt.Fprintf(out, " after %d turns", res.Turns)
	if res.CapReached {
		fmt.Fprint(out, " (turn cap reached)")
	}
	fmt.Fprintf(out, "; final health %d vs %d\n", res.AttackerHealth, res.DefenderHealth)
}
