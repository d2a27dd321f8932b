package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/mama165/sdk-go/logs"

	"group-lab/contract"
	"group-lab/domain"
	"group-lab/infrastructure/arpc/client"
)

// Manual protocol poker: sends exactly one mutation to a live IM server
// and prints the verdict. Handy to check a deployment without starting
// the whole bot.
func main() {
	addr := flag.String("addr", "localhost:9000", "IM server address")
	token := flag.String("token", "", "session token")
	bot := flag.Int64("bot", 0, "bot account id")
	group := flag.Int64("group", 0, "target group id")
	member := flag.Int64("member", 0, "target member id")
	action := flag.String("action", "set_card", "set_card | set_title | mute | unmute | kick")
	text := flag.String("text", "", "card or title text, kick reason")
	seconds := flag.Int64("seconds", 0, "mute duration in seconds")
	flag.Parse()

	// 1. Connexion au serveur IM
	// On utilise le token brut car on n'a pas encore configuré TLS/Certificats
	logger := logs.GetLoggerFromString("INFO")
	session, err := client.NewSession(logger, domain.BotID(*bot), *addr, *token, 5*time.Second, 16)
	if err != nil {
		log.Fatalf("Impossible de se connecter: %v", err)
	}
	defer session.Close()

	// 2. Construction de la mutation
	act, err := parseAction(*action)
	if err != nil {
		log.Fatalf("Action invalide: %v", err)
	}
	req := contract.MutationRequest{
		Group:   domain.GroupID(*group),
		Member:  domain.MemberID(*member),
		Action:  act,
		Text:    *text,
		Seconds: *seconds,
	}

	// 3. Envoi et attente du verdict
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fmt.Printf("Envoi de %s sur %d/%d...\n", act, *group, *member)
	rsp, err := session.SendGroupMutation(ctx, req)
	if err != nil {
		log.Fatalf("Erreur transport: %v", err)
	}

	// 4. Affichage propre du verdict
	fmt.Printf("\n--- [Verdict du serveur] ---\n")
	switch rsp.Code {
	case contract.ResponseOK:
		fmt.Printf("OK: mutation appliquée\n")
	case contract.ResponseDenied:
		fmt.Printf("REFUSÉ: droits insuffisants\n")
	case contract.ResponseBadArgument:
		fmt.Printf("INVALIDE: argument rejeté par le serveur\n")
	case contract.ResponseNoTarget:
		fmt.Printf("INTROUVABLE: le membre n'est plus dans le groupe\n")
	default:
		fmt.Printf("Code inconnu (%d)\n", rsp.Code)
	}
	if rsp.Detail != "" {
		fmt.Printf("Détail: %s\n", rsp.Detail)
	}
}

func parseAction(s string) (domain.Action, error) {
	switch s {
	case "set_card":
		return domain.ActionSetCard, nil
	case "set_title":
		return domain.ActionSetTitle, nil
	case "mute":
		return domain.ActionMute, nil
	case "unmute":
		return domain.ActionUnmute, nil
	case "kick":
		return domain.ActionKick, nil
	default:
		return 0, fmt.Errorf("unknown action %q", s)
	}
}
