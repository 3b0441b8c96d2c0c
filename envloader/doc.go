// Copyright 2025 Raywall Malheiros de Souza
// Licensed under the Mozilla Public License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.mozilla.org/en-US/MPL/2.0/
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Package envloader carrega variáveis de ambiente diretamente para campos de
// uma struct Go, a partir das tags `env`, `envDefault` e `envRequired`.
//
// Visão Geral:
// O `envloader` é a camada de configuração do cliente Integra Contador. Ele
// utiliza reflection para inspecionar a struct de configuração e mapear
// automaticamente variáveis de ambiente para os campos tipados. Suporta
// string, int, uint, bool, float, time.Duration, []string (separado por
// vírgula) e structs aninhadas (incluindo ponteiros para structs).
//
// Funcionalidades Principais:
// - Mapeamento por Tag: Usa a tag `env:"VAR_NAME"` para encontrar a variável.
// - Valores Padrão: Usa a tag `envDefault:"value"` se a variável não estiver definida.
// - Obrigatoriedade: `envRequired:"true"` acumula as variáveis ausentes e
//   devolve todas de uma vez em um *MissingError, para que o operador saiba
//   exatamente quais chaves faltam.
// - Fonte Alternativa: `LoadWith` aceita qualquer LookupFunc (útil em testes
//   e para resolver identificadores de serviços).
//
// Exemplo:
//
//   type Config struct {
//       ClientID string        `env:"SERPRO_CLIENT_ID" envRequired:"true"`
//       Timeout  time.Duration `env:"SERPRO_TIMEOUT" envDefault:"30s"`
//   }
//
//   var cfg Config
//   if err := envloader.Load(&cfg); err != nil {
//       log.Fatal(err) // envloader: missing required env: SERPRO_CLIENT_ID
//   }
package envloader
