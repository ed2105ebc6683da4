package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/serownia/internal/auth"
	"github.com/roach88/serownia/internal/nav"
	"github.com/roach88/serownia/internal/protocol"
	"github.com/roach88/serownia/internal/report"
	"github.com/roach88/serownia/internal/store"
)

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive menus for day-to-day work",
		Long: `Start a line-oriented session. After logging in, pick menu entries by
number; every view lists its own commands. "wstecz" returns to the previous
view, "wyloguj" logs out, "koniec" quits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithEnv(rootOpts, cmd, func(ctx context.Context, e *env) error {
				e.out.Format = "text"
				return newShell(e, cmd.InOrStdin(), cmd.OutOrStdout()).run(ctx)
			})
		},
	}
}

// shell is one interactive session. Views are closures over it; they
// navigate through the router and share the protocol being edited.
type shell struct {
	env     *env
	router  *nav.Router
	in      *bufio.Scanner
	w       io.Writer
	session *auth.Session
	draft   *protocol.Protocol
	filter  string
	quit    bool
}

func newShell(e *env, in io.Reader, w io.Writer) *shell {
	s := &shell{
		env:    e,
		router: nav.NewRouter(e.logger.Named("nav")),
		in:     bufio.NewScanner(in),
		w:      w,
	}

	r := s.router
	r.Register(nav.ViewLogin, nav.Funcs{EnterFunc: s.enterLogin, HandleFunc: s.handleLogin})
	r.Register(nav.ViewRegister, nav.Funcs{EnterFunc: s.enterRegister, HandleFunc: s.handleRegister})
	r.Register(nav.ViewStart, s.menu(nav.ViewStart, nav.ViewProduction, nav.ViewWarehouse, nav.ViewReports, nav.ViewSettings))
	r.Register(nav.ViewProduction, s.menu(nav.ViewProduction, nav.ViewNewProduction, nav.ViewProductionList))
	r.Register(nav.ViewWarehouse, s.menu(nav.ViewWarehouse, nav.ViewAdditivesRegister, nav.ViewPackagingRegister))
	r.Register(nav.ViewSettings, s.menu(nav.ViewSettings, nav.ViewCatalog, nav.ViewAccount))
	r.Register(nav.ViewNewProduction, nav.Funcs{EnterFunc: s.enterNewProduction, HandleFunc: s.handleNewProduction})
	r.Register(nav.ViewProtocolEditor, nav.Funcs{EnterFunc: s.enterEditor, HandleFunc: s.handleEditor})
	r.Register(nav.ViewProductionList, nav.Funcs{EnterFunc: s.enterProductionList, HandleFunc: s.handleProductionList})
	r.Register(nav.ViewAdditivesRegister, s.registerView(nav.ViewAdditivesRegister, store.RegisterAdditives))
	r.Register(nav.ViewPackagingRegister, s.registerView(nav.ViewPackagingRegister, store.RegisterPackaging))
	r.Register(nav.ViewCatalog, nav.Funcs{EnterFunc: s.enterCatalog, HandleFunc: s.handleCatalog})
	r.Register(nav.ViewReports, nav.Funcs{EnterFunc: s.enterReports, HandleFunc: s.handleReports})
	r.Register(nav.ViewAccount, nav.Funcs{EnterFunc: s.enterAccount, HandleFunc: s.handleAccount})
	return s
}

func (s *shell) run(ctx context.Context) error {
	fmt.Fprintln(s.w, `serownia: wpisz "pomoc", aby zobaczyć polecenia.`)
	if err := s.router.Show(ctx, nav.ViewLogin); err != nil {
		return err
	}
	for !s.quit {
		fmt.Fprint(s.w, "> ")
		if !s.in.Scan() {
			break
		}
		line := strings.TrimSpace(s.in.Text())
		if err := s.dispatch(ctx, line); err != nil {
			s.env.logger.Debug("shell command failed", zap.String("input", line), zap.Error(err))
			fmt.Fprintf(s.w, "Błąd: %s\n", messageOf(err))
		}
	}
	fmt.Fprintln(s.w)
	return s.in.Err()
}

func (s *shell) dispatch(ctx context.Context, line string) error {
	switch line {
	case "":
		return nil
	case "koniec":
		s.quit = true
		return nil
	case "pomoc":
		fmt.Fprintln(s.w, `Polecenia ogólne: wstecz, wyloguj, koniec, pomoc. W menu wpisz numer pozycji.`)
		return nil
	case "wstecz":
		ok, err := s.router.Back(ctx)
		if err == nil && !ok {
			fmt.Fprintln(s.w, "Nie ma dokąd wrócić.")
		}
		return err
	case "wyloguj":
		if s.session == nil {
			return inputErrorf("Nikt nie jest zalogowany.")
		}
		s.env.logger.Info("user logged out", zap.String("session_id", s.session.ID))
		s.session, s.draft = nil, nil
		return s.router.Reset(ctx, nav.ViewLogin)
	}
	return s.router.Dispatch(ctx, line)
}

func (s *shell) heading(id nav.ViewID) {
	fmt.Fprintf(s.w, "\n== %s ==\n", id.Title())
}

func unknownCommand(in string) error {
	return inputErrorf("Nieznane polecenie %q. Wpisz \"pomoc\".", in)
}

// splitCommand splits the first word off in.
func splitCommand(in string) (string, string) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(in), " ")
	return strings.ToLower(cmd), strings.TrimSpace(rest)
}

// browseFailed is the fallback of the list views: the failure is logged
// and the list shows as empty.
func (s *shell) browseFailed(what string, err error) {
	s.env.logger.Warn("list failed", zap.String("list", what), zap.Error(err))
	fmt.Fprintln(s.w, "  (brak)")
}

// menu is a view listing other views by number.
func (s *shell) menu(self nav.ViewID, items ...nav.ViewID) nav.View {
	return nav.Funcs{
		EnterFunc: func(ctx context.Context) error {
			s.heading(self)
			for i, v := range items {
				fmt.Fprintf(s.w, "  %d. %s\n", i+1, v.Title())
			}
			return nil
		},
		HandleFunc: func(ctx context.Context, in string) error {
			n, err := strconv.Atoi(in)
			if err != nil || n < 1 || n > len(items) {
				return unknownCommand(in)
			}
			return s.router.Show(ctx, items[n-1])
		},
	}
}

func (s *shell) enterLogin(ctx context.Context) error {
	s.heading(nav.ViewLogin)
	fmt.Fprintln(s.w, `Podaj "<użytkownik> <hasło>" albo "rejestracja".`)
	return nil
}

func (s *shell) handleLogin(ctx context.Context, in string) error {
	if strings.EqualFold(in, "rejestracja") {
		return s.router.Show(ctx, nav.ViewRegister)
	}
	parts := strings.Fields(in)
	if len(parts) != 2 {
		return inputErrorf("Podaj nazwę użytkownika i hasło.")
	}
	sess, err := s.env.accounts.Login(ctx, parts[0], parts[1])
	if err != nil {
		return err
	}
	s.session = &sess
	fmt.Fprintf(s.w, "Witaj, %s!\n", sess.Username)
	return s.router.Reset(ctx, nav.ViewStart)
}

func (s *shell) enterRegister(ctx context.Context) error {
	s.heading(nav.ViewRegister)
	fmt.Fprintln(s.w, `Podaj "<użytkownik> <hasło>" nowego konta.`)
	return nil
}

func (s *shell) handleRegister(ctx context.Context, in string) error {
	parts := strings.Fields(in)
	if len(parts) != 2 {
		return inputErrorf("Podaj nazwę użytkownika i hasło.")
	}
	if err := s.env.accounts.Register(ctx, parts[0], parts[1]); err != nil {
		return err
	}
	fmt.Fprintln(s.w, "Konto utworzone. Możesz się zalogować.")
	_, err := s.router.Back(ctx)
	return err
}

func (s *shell) enterNewProduction(ctx context.Context) error {
	s.heading(nav.ViewNewProduction)
	products, err := s.env.store.ListProducts(ctx)
	if err != nil {
		s.browseFailed("products", err)
		return nil
	}
	listed := 0
	for _, p := range products {
		kind := s.env.schemas.ResolveKind(p.CategoryName)
		if _, ok := s.env.schemas.For(kind); !ok {
			continue
		}
		fmt.Fprintf(s.w, "  %d. %s (%s)\n", p.ID, p.Name, kind)
		listed++
	}
	if listed == 0 {
		fmt.Fprintln(s.w, "  (brak)")
	}
	fmt.Fprintln(s.w, "Podaj numer produktu.")
	return nil
}

func (s *shell) handleNewProduction(ctx context.Context, in string) error {
	id, err := parseID("produktu", in)
	if err != nil {
		return err
	}
	p, err := s.env.protocols.New(ctx, id)
	if err != nil {
		return err
	}
	s.draft = p
	return s.router.Show(ctx, nav.ViewProtocolEditor)
}

func (s *shell) enterEditor(ctx context.Context) error {
	s.heading(nav.ViewProtocolEditor)
	if s.draft == nil {
		fmt.Fprintln(s.w, "  (brak protokołu)")
		return nil
	}
	sc, ok := s.env.schemas.For(s.draft.Kind)
	if !ok {
		return fmt.Errorf("no schema for kind %s", s.draft.Kind)
	}
	if err := protocol.Render(s.w, s.draft, sc); err != nil {
		return err
	}
	fmt.Fprintln(s.w, `Polecenia: pole <klucz> <wartość>, pola, data <RRRR-MM-DD>, seria <numer>,`)
	fmt.Fprintln(s.w, `  dawka <nr> <dawka>, partia <partia> <waga> [uwagi], usuń-partię <nr>, pokaż, zapisz`)
	return nil
}

func (s *shell) handleEditor(ctx context.Context, in string) error {
	p := s.draft
	if p == nil {
		return inputErrorf("Nie ma otwartego protokołu.")
	}
	sc, ok := s.env.schemas.For(p.Kind)
	if !ok {
		return fmt.Errorf("no schema for kind %s", p.Kind)
	}

	cmd, rest := splitCommand(in)
	switch cmd {
	case "pole":
		key, value := splitCommand(rest)
		f, ok := sc.Field(key)
		if !ok {
			return inputErrorf("Nieznane pole %q. Wpisz \"pola\".", key)
		}
		p.Fields[f.Key] = value
		if f.Volume {
			protocol.Recalculate(p, sc)
			for _, a := range p.Additives {
				fmt.Fprintf(s.w, "  %s: %s\n", a.Name, orNone(a.Dose))
			}
		}
		fmt.Fprintf(s.w, "%s = %s\n", f.Title(), orNone(value))
	case "pola":
		for _, f := range sc.Fields {
			line := fmt.Sprintf("  %s: %s", f.Key, f.Title())
			if len(f.Options) > 0 {
				line += " [" + strings.Join(f.Options, " | ") + "]"
			}
			fmt.Fprintln(s.w, line)
		}
	case "data":
		p.Date = rest
	case "seria":
		p.Series = rest
	case "dawka":
		nr, dose := splitCommand(rest)
		i, err := strconv.Atoi(nr)
		if err != nil || i < 1 || i > len(p.Additives) {
			return inputErrorf("Nie ma dodatku nr %s.", nr)
		}
		p.Additives[i-1].Dose = dose
		p.Additives[i-1].Rate = ""
	case "partia":
		parts := strings.Fields(rest)
		if len(parts) < 2 {
			return inputErrorf("Podaj numer partii i wagę.")
		}
		p.Batches = append(p.Batches, protocol.BatchLine{
			Lot:     parts[0],
			Weight:  parts[1],
			Comment: strings.Join(parts[2:], " "),
		})
	case "usuń-partię":
		i, err := strconv.Atoi(rest)
		if err != nil || i < 1 || i > len(p.Batches) {
			return inputErrorf("Nie ma partii nr %s.", rest)
		}
		p.Batches = append(p.Batches[:i-1], p.Batches[i:]...)
	case "pokaż":
		return s.enterEditor(ctx)
	case "zapisz":
		id, err := s.env.protocols.Save(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.w, "Zapisano protokół %d (seria %s).\n", id, p.Series)
	default:
		return unknownCommand(in)
	}
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(puste)"
	}
	return s
}

func (s *shell) enterProductionList(ctx context.Context) error {
	s.heading(nav.ViewProductionList)
	if s.filter != "" {
		fmt.Fprintf(s.w, "Filtr: %q\n", s.filter)
	}
	records, err := s.env.protocols.List(ctx, s.filter)
	if err != nil {
		s.browseFailed("production records", err)
		return nil
	}
	if len(records) == 0 {
		fmt.Fprintln(s.w, "  (brak)")
	} else {
		rows := make([][]string, 0, len(records))
		for _, r := range records {
			rows = append(rows, []string{idString(r.ID), r.Date, r.Series, r.ProductName})
		}
		if err := writeTable(s.w, []string{"ID", "DATA", "SERIA", "PRODUKT"}, rows); err != nil {
			return err
		}
	}
	fmt.Fprintln(s.w, `Polecenia: otwórz <id>, usuń <id>, szukaj <tekst>, szukaj (bez filtra)`)
	return nil
}

func (s *shell) handleProductionList(ctx context.Context, in string) error {
	cmd, rest := splitCommand(in)
	switch cmd {
	case "otwórz":
		id, err := parseID("protokołu", rest)
		if err != nil {
			return err
		}
		p, err := s.env.protocols.Load(ctx, id)
		if err != nil {
			return err
		}
		s.draft = p
		return s.router.Show(ctx, nav.ViewProtocolEditor)
	case "usuń":
		id, err := parseID("protokołu", rest)
		if err != nil {
			return err
		}
		if err := s.env.protocols.Delete(ctx, id, false); err != nil {
			return err
		}
		fmt.Fprintf(s.w, "Usunięto protokół %d.\n", id)
		return s.enterProductionList(ctx)
	case "szukaj":
		s.filter = rest
		return s.enterProductionList(ctx)
	}
	return unknownCommand(in)
}

// registerView lists one receipt register and records new receipts.
func (s *shell) registerView(self nav.ViewID, kind store.RegisterKind) nav.View {
	enter := func(ctx context.Context) error {
		s.heading(self)
		entries, err := s.env.store.ListRegister(ctx, kind)
		if err != nil {
			s.browseFailed(kind.String()+" register", err)
			return nil
		}
		if len(entries) == 0 {
			fmt.Fprintln(s.w, "  (brak)")
		} else {
			rows := make([][]string, 0, len(entries))
			for _, r := range entries {
				rows = append(rows, []string{idString(r.ID), r.Date, r.Quantity, r.ItemName})
			}
			if err := writeTable(s.w, []string{"ID", "DATA", "ILOŚĆ", "POZYCJA"}, rows); err != nil {
				return err
			}
		}
		fmt.Fprintln(s.w, `Polecenia: dodaj <pozycja> <ilość> [RRRR-MM-DD], usuń <id>, stany`)
		return nil
	}

	handle := func(ctx context.Context, in string) error {
		cmd, rest := splitCommand(in)
		switch cmd {
		case "dodaj":
			parts := strings.Fields(rest)
			if len(parts) < 2 || len(parts) > 3 {
				return inputErrorf("Podaj pozycję i ilość.")
			}
			if err := checkQuantities(map[string]string{"Ilość": parts[1]}); err != nil {
				return err
			}
			itemID, _, err := s.env.registerItem(ctx, kind, parts[0])
			if err != nil {
				return err
			}
			date := s.env.today()
			if len(parts) == 3 {
				date = parts[2]
			}
			if _, err := s.env.store.AddRegisterEntry(ctx, kind, date, parts[1], itemID); err != nil {
				return err
			}
			return enter(ctx)
		case "usuń":
			id, err := parseID("wpisu", rest)
			if err != nil {
				return err
			}
			if err := s.env.store.DeleteRegisterEntry(ctx, kind, id); err != nil {
				return err
			}
			return enter(ctx)
		case "stany":
			entries, err := s.env.store.ListRegister(ctx, kind)
			if err != nil {
				return err
			}
			for _, t := range report.Totals(kind, entries) {
				fmt.Fprintf(s.w, "  %s: %s", t.ItemName, t.Quantity.String())
				if t.Skipped > 0 {
					fmt.Fprintf(s.w, " (pominięto %d)", t.Skipped)
				}
				fmt.Fprintln(s.w)
			}
			return nil
		}
		return unknownCommand(in)
	}

	return nav.Funcs{EnterFunc: enter, HandleFunc: handle}
}

func (s *shell) enterCatalog(ctx context.Context) error {
	s.heading(nav.ViewCatalog)
	fmt.Fprintln(s.w, `Polecenia: produkty, dodatki, opakowania, receptura <produkt>, kategorie <additive|product|packaging>`)
	return nil
}

func (s *shell) handleCatalog(ctx context.Context, in string) error {
	cmd, rest := splitCommand(in)
	var (
		headers []string
		rows    [][]string
	)
	switch cmd {
	case "produkty":
		items, err := s.env.store.ListProducts(ctx)
		if err != nil {
			s.browseFailed("products", err)
			return nil
		}
		headers = []string{"ID", "NAZWA", "KATEGORIA", "PROTOKÓŁ"}
		for _, p := range items {
			rows = append(rows, []string{idString(p.ID), p.Name, p.CategoryName, s.env.kindOf(p.CategoryName)})
		}
	case "dodatki":
		items, err := s.env.store.ListAdditives(ctx)
		if err != nil {
			s.browseFailed("additives", err)
			return nil
		}
		headers = []string{"ID", "NAZWA", "KATEGORIA"}
		for _, a := range items {
			rows = append(rows, []string{idString(a.ID), a.Name, a.CategoryName})
		}
	case "opakowania":
		items, err := s.env.store.ListPackaging(ctx)
		if err != nil {
			s.browseFailed("packaging", err)
			return nil
		}
		headers = []string{"ID", "NAZWA", "ILOŚĆ", "KATEGORIA"}
		for _, p := range items {
			rows = append(rows, []string{idString(p.ID), p.Name, p.Quantity, p.CategoryName})
		}
	case "receptura":
		product, err := s.env.productRef(ctx, rest)
		if err != nil {
			return err
		}
		lines, err := s.env.store.ListProductAdditives(ctx, product.ID)
		if err != nil {
			s.browseFailed("recipe", err)
			return nil
		}
		headers = []string{"ID", "KATEGORIA", "DODATEK", "DAWKA/100"}
		for _, l := range lines {
			rows = append(rows, []string{idString(l.ID), l.CategoryName, l.AdditiveName, l.DosagePer100})
		}
	case "kategorie":
		kind, err := store.ParseCategoryKind(rest)
		if err != nil {
			return asInput(err)
		}
		cats, err := s.env.store.ListCategories(ctx, kind)
		if err != nil {
			s.browseFailed("categories", err)
			return nil
		}
		headers = []string{"ID", "NAZWA"}
		for _, c := range cats {
			rows = append(rows, []string{idString(c.ID), c.Name})
		}
	default:
		return unknownCommand(in)
	}
	if len(rows) == 0 {
		fmt.Fprintln(s.w, "  (brak)")
		return nil
	}
	return writeTable(s.w, headers, rows)
}

func (s *shell) enterReports(ctx context.Context) error {
	s.heading(nav.ViewReports)
	fmt.Fprintln(s.w, `Polecenia: xlsx [plik]`)
	return nil
}

func (s *shell) handleReports(ctx context.Context, in string) error {
	cmd, rest := splitCommand(in)
	if cmd != "xlsx" {
		return unknownCommand(in)
	}
	return runReportXLSX(ctx, s.env, &ReportOptions{Output: rest})
}

func (s *shell) enterAccount(ctx context.Context) error {
	s.heading(nav.ViewAccount)
	if s.session != nil {
		fmt.Fprintf(s.w, "Zalogowano jako %s.\n", s.session.Username)
	}
	fmt.Fprintln(s.w, `Polecenia: hasło <obecne> <nowe>, wyloguj`)
	return nil
}

func (s *shell) handleAccount(ctx context.Context, in string) error {
	cmd, rest := splitCommand(in)
	if cmd != "hasło" {
		return unknownCommand(in)
	}
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return inputErrorf("Podaj obecne i nowe hasło.")
	}
	if _, err := s.env.accounts.Login(ctx, s.session.Username, parts[0]); err != nil {
		return err
	}
	if err := s.env.accounts.ChangePassword(ctx, s.session.Username, parts[1]); err != nil {
		return err
	}
	fmt.Fprintln(s.w, "Hasło zostało zmienione.")
	return nil
}
