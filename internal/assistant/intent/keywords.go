package intent

// Keyword tables are fixed at build time: two languages, slice order is the
// tie-break when two keywords match at the same position.

type opKeywords struct {
	Op    Operation
	Words []string
}

type resKeywords struct {
	Res   Resource
	Words []string
}

var opTableEN = []opKeywords{
	{OpCreate, []string{"create", "add", "new", "make"}},
	{OpUpdate, []string{"update", "edit", "change", "modify"}},
	{OpDelete, []string{"delete", "remove", "clear"}},
	{OpList, []string{"list", "show", "display"}},
	{OpRead, []string{"read", "view", "find", "get", "search"}},
}

var opTableFR = []opKeywords{
	{OpCreate, []string{"créer", "creer", "crée", "cree", "ajouter", "ajoute", "nouvelle", "nouveau"}},
	{OpUpdate, []string{"modifier", "modifie", "changer", "change", "mettre à jour", "mets à jour"}},
	{OpDelete, []string{"supprimer", "supprime", "effacer", "efface", "retirer", "retire"}},
	{OpList, []string{"liste", "lister", "afficher", "affiche", "montrer", "montre"}},
	{OpRead, []string{"voir", "lire", "trouver", "trouve", "chercher", "cherche"}},
}

var resTableEN = []resKeywords{
	{ResTask, []string{"task", "tasks", "todo", "todos"}},
	{ResClient, []string{"client", "clients", "customer", "customers"}},
	{ResOrder, []string{"order", "orders", "invoice", "invoices"}},
	{ResEvent, []string{"event", "events", "meeting", "meetings", "appointment", "appointments"}},
}

var resTableFR = []resKeywords{
	{ResTask, []string{"tâche", "tâches", "tache", "taches"}},
	{ResClient, []string{"client", "clients", "cliente", "clientes"}},
	{ResOrder, []string{"commande", "commandes", "facture", "factures"}},
	{ResEvent, []string{"événement", "événements", "evenement", "evenements", "rendez-vous", "rdv", "réunion", "reunion"}},
}

var statusTable = []struct {
	Status string
	Words  []string
}{
	{"in_progress", []string{"in progress", "ongoing", "started", "en cours", "commencée", "commencé"}},
	{"completed", []string{"completed", "done", "finished", "terminée", "terminées", "terminé", "terminés", "finie", "finies", "fini", "finis", "achevée", "achevé"}},
	{"cancelled", []string{"cancelled", "canceled", "annulée", "annulées", "annulé", "annulés"}},
	{"pending", []string{"pending", "to do", "en attente", "à faire", "a faire"}},
}

var priorityTable = []struct {
	Priority string
	Words    []string
}{
	{"high", []string{"urgent", "urgente", "high priority", "haute priorité", "important", "importante"}},
	{"low", []string{"low priority", "basse priorité", "faible priorité", "pas urgent", "minor"}},
	{"medium", []string{"medium priority", "priorité moyenne", "normal"}},
}

var bulkQuantifiers = []string{"all", "everything", "tout", "tous", "toutes", "toute"}

// frenchMarkers are short function words that only appear in French text;
// they weigh into language detection alongside the keyword tables.
var frenchMarkers = []string{"une", "des", "les", "mes", "ma", "mon", "pour", "avec", "dans"}

// englishMarkers mirror frenchMarkers on the English side.
var englishMarkers = []string{"the", "my", "for", "with", "all", "a", "an"}
