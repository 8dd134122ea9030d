package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"TextCorrector/internal/service/textbridge"
)

// Ручная проверка моста: запускаем, переключаемся в нужное окно и ждём.
func main() {
	mode := flag.String("mode", "read", "read|write|roundtrip")
	text := flag.String("text", "Проверка записи", "текст для режима write")
	delay := flag.Duration("delay", 3*time.Second, "пауза, чтобы успеть переключиться в целевое окно")
	debug := flag.Bool("debug", false, "подробные логи стратегий")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if !*debug {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	sugar := logger.Sugar()
	defer func() { _ = logger.Sync() }()

	bridge := textbridge.New(textbridge.NewPlatform(), textbridge.Options{}, sugar)

	fmt.Printf("Переключитесь в окно, %s осталось...\n", *delay)
	time.Sleep(*delay)

	switch *mode {
	case "read":
		got, ctrl, ok := bridge.ReadActive()
		if !ok {
			fmt.Println("Текст прочитать не удалось")
			os.Exit(1)
		}
		fmt.Printf("control=%#x chars=%d\n%s\n", uintptr(ctrl), len([]rune(got)), got)
	case "write":
		if !bridge.WriteActive(*text, 0) {
			fmt.Println("Запись не удалась")
			os.Exit(1)
		}
		fmt.Println("Записано")
	case "roundtrip":
		got, ctrl, ok := bridge.ReadActive()
		if !ok {
			fmt.Println("Текст прочитать не удалось")
			os.Exit(1)
		}
		if !bridge.WriteActive(got+*text, ctrl) {
			fmt.Println("Запись не удалась")
			os.Exit(1)
		}
		fmt.Printf("Прочитано %d символов, дописано %q\n", len([]rune(got)), *text)
	default:
		fmt.Fprintf(os.Stderr, "неизвестный режим %q\n", *mode)
		os.Exit(2)
	}
}
